package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/moot/vm"
)

func mustCompile(t *testing.T, src string) *vm.Program {
	t.Helper()
	prog, err := Compile(src)
	if err != nil {
		t.Fatalf("compile failed: %v\nsource:\n%s", err, src)
	}
	return prog
}

func TestCompileSimple(t *testing.T) {
	prog := mustCompile(t, "return 1 + 2;")
	if len(prog.Bytecode) == 0 {
		t.Fatal("empty bytecode")
	}
	dis := vm.Disassemble(prog.Bytecode)
	for _, want := range []string{"PUSH_LITERAL", "ADD", "RETURN"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly missing %s:\n%s", want, dis)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := `
x = {1, 2, 3};
for v in (x)
  if (v > 1)
    notify(player, tostr(v));
  endif
endfor
return length(x);
`
	a := mustCompile(t, src)
	b := mustCompile(t, src)
	if !bytes.Equal(a.Bytecode, b.Bytecode) {
		t.Error("recompilation produced different bytecode")
	}
	if len(a.Literals) != len(b.Literals) {
		t.Error("recompilation produced different literal pools")
	}
}

func TestLiteralDedup(t *testing.T) {
	prog := mustCompile(t, `x = "abc"; y = "abc"; z = "ABC"; return 0;`)
	abc, upper := 0, 0
	for _, lit := range prog.Literals {
		switch lit.Str() {
		case "abc":
			abc++
		case "ABC":
			upper++
		}
	}
	if abc != 1 {
		t.Errorf("identical literals interned %d times, want 1", abc)
	}
	if upper != 1 {
		t.Errorf("case-variant literal should get its own entry, found %d", upper)
	}
}

func TestBuiltinVarSlots(t *testing.T) {
	prog := mustCompile(t, "return args;")
	if len(prog.VarNames) < vm.NumBuiltinSlots {
		t.Fatalf("var table too small: %v", prog.VarNames)
	}
	for i, want := range vm.BuiltinVarNames {
		if prog.VarNames[i] != want {
			t.Errorf("slot %d = %q, want %q", i, prog.VarNames[i], want)
		}
	}
}

func TestVarNamesCaseInsensitive(t *testing.T) {
	prog := mustCompile(t, "Foo = 1; foo = fOO + 1; return foo;")
	n := 0
	for _, name := range prog.VarNames {
		if strings.EqualFold(name, "foo") {
			n++
		}
	}
	if n != 1 {
		t.Errorf("case variants of one variable got %d slots, want 1", n)
	}
}

func TestCompileControlFlow(t *testing.T) {
	srcs := []string{
		"if (1) return 1; elseif (2) return 2; else return 3; endif",
		"while (1) break; endwhile",
		"while outer (1) while (2) break outer; endwhile endwhile",
		"for x in [1..10] continue; endfor",
		"for v, k in (["+`"a" -> 1`+"]) notify(player, k); endfor",
		"fork (5) player:tell(\"later\"); endfork",
		"fork t (0) kill_task(t); endfork",
		"x = 1 < 2 ? \"yes\" | \"no\"; return x;",
		"return 1 && 0 || 2;",
	}
	for _, src := range srcs {
		mustCompile(t, src)
	}
}

func TestCompileForkVector(t *testing.T) {
	prog := mustCompile(t, `fork (10) notify(player, "hi"); endfork return 0;`)
	if len(prog.Forks) != 1 {
		t.Fatalf("forks = %d, want 1", len(prog.Forks))
	}
	if len(prog.Forks[0].Bytecode) == 0 {
		t.Error("empty fork vector")
	}
	if !strings.Contains(vm.Disassemble(prog.Bytecode), "FORK") {
		t.Error("main vector missing FORK")
	}
}

func TestCompileTryForms(t *testing.T) {
	srcs := []string{
		`try x = 1 / 0; except e (E_DIV) return e[1]; endtry`,
		`try return 1; except (ANY) return 2; endtry`,
		`try x = 1; finally y = 2; endtry`,
		"return `1 / 0 ! E_DIV => -1';",
		"return `x ! ANY';",
	}
	for _, src := range srcs {
		mustCompile(t, src)
	}
}

func TestCompileScatter(t *testing.T) {
	srcs := []string{
		"{a, b} = args; return a;",
		"{a, ?b = 5, @rest} = args; return {a, b, rest};",
		"{@all} = args; return all;",
		"{first, ?second} = {1}; return second;",
	}
	for _, src := range srcs {
		mustCompile(t, src)
	}
}

func TestCompileIndexForms(t *testing.T) {
	srcs := []string{
		"x = {1, 2, 3}; return x[$];",
		"x = \"abcdef\"; return x[2..$ - 1];",
		"x = {1, 2, 3}; x[2] = 9; return x;",
		"x = {{1, 2}, {3, 4}}; x[1][2] = 9; return x;",
		"x = {1, 2, 3, 4}; x[2..3] = {9}; return x;",
		"this.names[2] = \"new\";",
	}
	for _, src := range srcs {
		mustCompile(t, src)
	}
}

func TestCompileObjectSyntax(t *testing.T) {
	srcs := []string{
		"return #0.name;",
		"return $room;",
		"return $string_utils:trim(\" x \");",
		"return this:(verb)(@args);",
		"return this.(\"color\");",
		"o = create(#1); o.name = \"thing\"; return o;",
	}
	for _, src := range srcs {
		mustCompile(t, src)
	}
}

func TestCompileErrors(t *testing.T) {
	srcs := []string{
		"return 1 +;",
		"if (1) return 1;",
		"while (1) endfor",
		"x = ;",
		"1 = x;",
		"return `1 ! E_DIV;",
		"{a, @b, @c} = args;",
		"break;",
		"break missing_label;",
		"return no_such_builtin_fn(1);",
		"return $;",
		"x = E_BOGUS;",
		`x = "unterminated`,
	}
	for _, src := range srcs {
		if _, err := Compile(src); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestCompileSourceMap(t *testing.T) {
	prog := mustCompile(t, "x = 1;\ny = 2;\nreturn x + y;\n")
	if len(prog.Map) == 0 {
		t.Fatal("no source map")
	}
	last := prog.Map[len(prog.Map)-1]
	if last.Line != 3 {
		t.Errorf("last mapped line = %d, want 3", last.Line)
	}
	if prog.LineAt(-1, last.Offset) != 3 {
		t.Errorf("LineAt = %d, want 3", prog.LineAt(-1, last.Offset))
	}
}

func TestCompileKeywordCase(t *testing.T) {
	mustCompile(t, "IF (1) RETURN 1; ENDIF")
	mustCompile(t, "If (1) Return 1; EndIf")
}

func TestCompileComments(t *testing.T) {
	mustCompile(t, "// leading comment\nx = 1; /* inline */ return x;")
	if _, err := Compile("/* unterminated"); err == nil {
		t.Error("expected error for unterminated comment")
	}
}
