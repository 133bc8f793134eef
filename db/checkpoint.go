package db

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Checkpoints: durable world snapshots
// ---------------------------------------------------------------------------

// Checkpoint files carry a magic string, a format version, and a
// zstd-compressed canonical CBOR body. Writes go to a temp file in the
// same directory and rename into place, so a crash mid-write never
// clobbers the previous snapshot.

const (
	checkpointMagic   = "MOOTCKPT"
	checkpointVersion = 1
)

type snapshot struct {
	Max     value.Objid `cbor:"1,keyasint"`
	Objects []*Object   `cbor:"2,keyasint"`
}

var checkpointEnc cbor.EncMode

func init() {
	var err error
	checkpointEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Save writes a snapshot of the committed world to path.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	snap := snapshot{Max: s.max}
	ids := make([]value.Objid, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		snap.Objects = append(snap.Objects, s.objects[id])
	}
	s.mu.Unlock()

	body, err := checkpointEnc.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ckpt-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeCheckpoint(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	s.log.Infof("checkpoint saved: %d objects, max #%d", len(snap.Objects), snap.Max)
	return nil
}

func writeCheckpoint(w io.Writer, body []byte) error {
	if _, err := w.Write([]byte(checkpointMagic)); err != nil {
		return err
	}
	var ver [2]byte
	binary.BigEndian.PutUint16(ver[:], checkpointVersion)
	if _, err := w.Write(ver[:]); err != nil {
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Load replaces the store's contents with the snapshot at path. A
// missing magic string or a version mismatch is rejected outright;
// there is no migration path inside the loader.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(checkpointMagic)+2)
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("reading checkpoint header: %w", err)
	}
	if string(head[:len(checkpointMagic)]) != checkpointMagic {
		return fmt.Errorf("%s is not a checkpoint file", path)
	}
	ver := binary.BigEndian.Uint16(head[len(checkpointMagic):])
	if ver != checkpointVersion {
		return fmt.Errorf("checkpoint version %d, this build reads %d", ver, checkpointVersion)
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("decompressing checkpoint: %w", err)
	}

	var snap snapshot
	if err := cbor.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("decoding checkpoint: %w", err)
	}

	s.mu.Lock()
	s.objects = make(map[value.Objid]*Object, len(snap.Objects))
	for _, o := range snap.Objects {
		s.objects[o.ID] = o
	}
	s.max = snap.Max
	s.mu.Unlock()
	s.cache.Prune()
	s.log.Infof("checkpoint loaded: %d objects, max #%d", len(snap.Objects), snap.Max)
	return nil
}
