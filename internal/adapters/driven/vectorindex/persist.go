package vectorindex

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/logger"
)

// On-disk file names under the index directory.
const (
	IndexFileName    = "index.bin"
	MetadataFileName = "metadata.json"
)

// Binary layout of index.bin (little endian):
//
//	magic "RGIX" | version u32
//	dim u32 | count u32 | lists u32 | type u8 | metric u8 | trained u8 | reserved u8
//	vectors   count*dim f32
//	centroids lists*dim f32
//	assign    count i32 (-1 = unassigned)
//	deleted   count u8
//	crc32     u32 (IEEE, over everything above)
const (
	fileMagic   = "RGIX"
	fileVersion = 1
	headerSize  = 4 + 4 + 4 + 4 + 4 + 4
)

var (
	typeCodes   = map[domain.IndexType]uint8{domain.IndexTypeFlat: 1, domain.IndexTypeIVF: 2}
	metricCodes = map[domain.Metric]uint8{domain.MetricCosine: 1, domain.MetricL2: 2, domain.MetricInnerProduct: 3}
)

// sideTable is the JSON layout of metadata.json.
type sideTable struct {
	Version       int                  `json:"version"`
	Dimension     int                  `json:"dimension"`
	Type          domain.IndexType     `json:"index_type"`
	Metric        domain.Metric        `json:"metric"`
	TrainingState domain.TrainingState `json:"training_state"`
	NextPosition  int                  `json:"next_position"`
	IDToPosition  map[string]int       `json:"id_to_position"`
	Entries       []sideTableEntry     `json:"entries"`
}

type sideTableEntry struct {
	Position int                  `json:"position"`
	ChunkID  string               `json:"chunk_id"`
	Text     string               `json:"text"`
	Metadata domain.ChunkMetadata `json:"metadata"`
	Deleted  bool                 `json:"deleted,omitempty"`
}

// Save writes index.bin and metadata.json under dir. Each file is written
// to a temporary name and renamed, so a crash never leaves a half-written file.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	bin := idx.encodeBinary()
	table := idx.buildSideTable()
	idx.mu.RUnlock()

	meta, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("vectorindex: encode side-table: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: create %s: %w", dir, err)
	}
	if err := writeAtomic(filepath.Join(dir, IndexFileName), bin); err != nil {
		return fmt.Errorf("vectorindex: save index: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, MetadataFileName), meta); err != nil {
		return fmt.Errorf("vectorindex: save side-table: %w", err)
	}
	return nil
}

// Load restores the index from dir. It returns false when no saved index
// exists. A file without its partner (one store was cleared) is ignored
// with a warning. Malformed files return domain.ErrIndexCorrupted and leave
// the in-memory index untouched.
func (idx *Index) Load(dir string) (bool, error) {
	binPath := filepath.Join(dir, IndexFileName)
	metaPath := filepath.Join(dir, MetadataFileName)

	bin, binErr := os.ReadFile(binPath)
	meta, metaErr := os.ReadFile(metaPath)
	binMissing := errors.Is(binErr, fs.ErrNotExist)
	metaMissing := errors.Is(metaErr, fs.ErrNotExist)

	switch {
	case binMissing && metaMissing:
		return false, nil
	case binMissing:
		logger.Warn("vectorindex: ignoring %s without %s", metaPath, IndexFileName)
		return false, nil
	case metaMissing:
		logger.Warn("vectorindex: ignoring %s without %s", binPath, MetadataFileName)
		return false, nil
	case binErr != nil:
		return false, fmt.Errorf("vectorindex: read index: %w", binErr)
	case metaErr != nil:
		return false, fmt.Errorf("vectorindex: read side-table: %w", metaErr)
	}

	decoded, err := idx.decodeBinary(bin)
	if err != nil {
		return false, fmt.Errorf("vectorindex: %s: %w: %w", binPath, domain.ErrIndexCorrupted, err)
	}

	var table sideTable
	if err := json.Unmarshal(meta, &table); err != nil {
		return false, fmt.Errorf("vectorindex: %s: %w: %w", metaPath, domain.ErrIndexCorrupted, err)
	}
	if err := idx.validateSideTable(&table, decoded); err != nil {
		return false, fmt.Errorf("vectorindex: %s: %w: %w", metaPath, domain.ErrIndexCorrupted, err)
	}

	entries := make([]entry, len(table.Entries))
	ids := make(map[string]int, len(table.IDToPosition))
	for i, e := range table.Entries {
		entries[i] = entry{ChunkID: e.ChunkID, Text: e.Text, Metadata: e.Metadata, Deleted: e.Deleted}
	}
	for id, pos := range table.IDToPosition {
		ids[id] = pos
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.generation++
	idx.vectors = decoded.vectors
	idx.entries = entries
	idx.ids = ids
	idx.centroids = decoded.centroids
	idx.state = table.TrainingState
	if idx.state == domain.TrainingStateReady && len(idx.centroids) > 0 {
		idx.assign = decoded.assign
		idx.lists = make([][]int, len(idx.centroids))
		for pos, c := range idx.assign {
			if c >= 0 && !entries[pos].Deleted {
				idx.lists[c] = append(idx.lists[c], pos)
			}
		}
	} else {
		idx.rebuildLists()
	}
	return true, nil
}

// RemoveIndexFile deletes index.bin under dir. A missing file is not an error.
func (idx *Index) RemoveIndexFile(dir string) error {
	return removeIfExists(filepath.Join(dir, IndexFileName))
}

// RemoveSideTable deletes metadata.json under dir. A missing file is not an error.
func (idx *Index) RemoveSideTable(dir string) error {
	return removeIfExists(filepath.Join(dir, MetadataFileName))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("vectorindex: remove %s: %w", path, err)
	}
	return nil
}

// encodeBinary serialises vectors and IVF state. Caller holds a read lock.
func (idx *Index) encodeBinary() []byte {
	dim := idx.cfg.Dimension
	count := len(idx.vectors)
	lists := len(idx.centroids)
	trained := uint8(0)
	if idx.state == domain.TrainingStateReady {
		trained = 1
	}
	// A save taken mid-training records no centroids.
	if idx.state == domain.TrainingStateTraining {
		lists = 0
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + (count+lists)*dim*4 + count*5 + 4)
	buf.WriteString(fileMagic)
	writeU32(&buf, fileVersion)
	writeU32(&buf, uint32(dim))
	writeU32(&buf, uint32(count))
	writeU32(&buf, uint32(lists))
	buf.WriteByte(typeCodes[idx.cfg.Type])
	buf.WriteByte(metricCodes[idx.cfg.Metric])
	buf.WriteByte(trained)
	buf.WriteByte(0)

	for _, v := range idx.vectors {
		writeFloats(&buf, v)
	}
	for _, c := range idx.centroids[:lists] {
		writeFloats(&buf, c)
	}
	for pos := 0; pos < count; pos++ {
		a := int32(-1)
		if lists > 0 && pos < len(idx.assign) {
			a = int32(idx.assign[pos])
		}
		writeU32(&buf, uint32(a))
	}
	for pos := 0; pos < count; pos++ {
		if idx.entries[pos].Deleted {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	writeU32(&buf, crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes()
}

// buildSideTable snapshots entries and the id map. Caller holds a read lock.
func (idx *Index) buildSideTable() sideTable {
	state := idx.state
	if state == domain.TrainingStateTraining {
		state = domain.TrainingStateUntrained
	}
	table := sideTable{
		Version:       fileVersion,
		Dimension:     idx.cfg.Dimension,
		Type:          idx.cfg.Type,
		Metric:        idx.cfg.Metric,
		TrainingState: state,
		NextPosition:  len(idx.entries),
		IDToPosition:  make(map[string]int, len(idx.ids)),
		Entries:       make([]sideTableEntry, len(idx.entries)),
	}
	for id, pos := range idx.ids {
		table.IDToPosition[id] = pos
	}
	for pos, e := range idx.entries {
		table.Entries[pos] = sideTableEntry{
			Position: pos,
			ChunkID:  e.ChunkID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Deleted:  e.Deleted,
		}
	}
	return table
}

type decodedBinary struct {
	vectors   [][]float32
	centroids [][]float32
	assign    []int
	deleted   []bool
	trained   bool
}

// decodeBinary parses and checks index.bin against the configured dim, type and metric.
func (idx *Index) decodeBinary(data []byte) (*decodedBinary, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != fileMagic {
		return nil, fmt.Errorf("bad magic %q", data[:4])
	}

	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, errors.New("checksum mismatch")
	}

	r := bytes.NewReader(body[4:])
	var hdr struct {
		Version  uint32
		Dim      uint32
		Count    uint32
		Lists    uint32
		Type     uint8
		Metric   uint8
		Trained  uint8
		Reserved uint8
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Version != fileVersion {
		return nil, fmt.Errorf("unsupported version %d", hdr.Version)
	}
	if int(hdr.Dim) != idx.cfg.Dimension {
		return nil, fmt.Errorf("dimension %d does not match configured %d", hdr.Dim, idx.cfg.Dimension)
	}
	if hdr.Type != typeCodes[idx.cfg.Type] {
		return nil, fmt.Errorf("index type code %d does not match configured %s", hdr.Type, idx.cfg.Type)
	}
	if hdr.Metric != metricCodes[idx.cfg.Metric] {
		return nil, fmt.Errorf("metric code %d does not match configured %s", hdr.Metric, idx.cfg.Metric)
	}

	dim, count, lists := int(hdr.Dim), int(hdr.Count), int(hdr.Lists)
	want := (count+lists)*dim*4 + count*4 + count
	if r.Len() != want {
		return nil, fmt.Errorf("payload is %d bytes, header implies %d", r.Len(), want)
	}

	out := &decodedBinary{trained: hdr.Trained == 1}
	var err error
	if out.vectors, err = readMatrix(r, count, dim); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	if out.centroids, err = readMatrix(r, lists, dim); err != nil {
		return nil, fmt.Errorf("read centroids: %w", err)
	}
	if lists == 0 {
		out.centroids = nil
	}

	out.assign = make([]int, count)
	for pos := range out.assign {
		var a int32
		if err := binary.Read(r, binary.LittleEndian, &a); err != nil {
			return nil, fmt.Errorf("read assignments: %w", err)
		}
		if int(a) < -1 || int(a) >= lists {
			return nil, fmt.Errorf("position %d assigned to list %d of %d", pos, a, lists)
		}
		out.assign[pos] = int(a)
	}

	flags := make([]byte, count)
	if _, err := io.ReadFull(r, flags); err != nil {
		return nil, fmt.Errorf("read tombstones: %w", err)
	}
	out.deleted = make([]bool, count)
	for pos, f := range flags {
		out.deleted[pos] = f == 1
	}
	return out, nil
}

// validateSideTable cross-checks metadata.json against the decoded binary.
func (idx *Index) validateSideTable(t *sideTable, bin *decodedBinary) error {
	if t.Dimension != idx.cfg.Dimension || t.Type != idx.cfg.Type || t.Metric != idx.cfg.Metric {
		return fmt.Errorf("side-table is %d/%s/%s, index configured as %d/%s/%s",
			t.Dimension, t.Type, t.Metric, idx.cfg.Dimension, idx.cfg.Type, idx.cfg.Metric)
	}
	count := len(bin.vectors)
	if len(t.Entries) != count || t.NextPosition != count {
		return fmt.Errorf("side-table has %d entries (next position %d), index has %d vectors",
			len(t.Entries), t.NextPosition, count)
	}
	switch t.TrainingState {
	case domain.TrainingStateReady, domain.TrainingStateUntrained:
	default:
		return fmt.Errorf("invalid training state %q", t.TrainingState)
	}
	if (t.TrainingState == domain.TrainingStateReady) != bin.trained {
		return errors.New("training state differs between side-table and index")
	}
	if !idx.cfg.Type.RequiresTraining() && t.TrainingState != domain.TrainingStateReady {
		return errors.New("flat index recorded as untrained")
	}

	live := 0
	for pos, e := range t.Entries {
		if e.Position != pos {
			return fmt.Errorf("entry %d records position %d", pos, e.Position)
		}
		if e.Deleted != bin.deleted[pos] {
			return fmt.Errorf("tombstone for position %d differs between files", pos)
		}
		if !e.Deleted {
			live++
		}
	}
	if live != len(t.IDToPosition) {
		return fmt.Errorf("%d live entries but %d ids", live, len(t.IDToPosition))
	}
	for id, pos := range t.IDToPosition {
		if pos < 0 || pos >= count {
			return fmt.Errorf("id %s maps to position %d of %d", id, pos, count)
		}
		if e := t.Entries[pos]; e.ChunkID != id || e.Deleted {
			return fmt.Errorf("id %s maps to position %d holding %q", id, pos, e.ChunkID)
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
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
	return os.Rename(tmpName, path)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeFloats(buf *bytes.Buffer, v []float32) {
	var b [4]byte
	for _, x := range v {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(x))
		buf.Write(b[:])
	}
}

func readMatrix(r io.Reader, rows, dim int) ([][]float32, error) {
	out := make([][]float32, rows)
	raw := make([]byte, dim*4)
	for i := range out {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		row := make([]float32, dim)
		for d := range row {
			row[d] = math.Float32frombits(binary.LittleEndian.Uint32(raw[d*4:]))
		}
		out[i] = row
	}
	return out, nil
}
