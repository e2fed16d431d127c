package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/burrowdb/burrow/buffer"
	"github.com/burrowdb/burrow/storage/disk"
	"github.com/burrowdb/burrow/util"
)

// Datatype identifies the indexed attribute's type. Only integers are
// supported; the value is stored in the meta page for validation.
type Datatype int32

const Integer Datatype = 0

// Config parameterises index construction. Zero occupancies select the
// page-size-derived defaults; on reopen the occupancies recorded in the
// meta page win.
type Config struct {
	RelationName   string
	AttrByteOffset int
	AttrType       Datatype
	LeafOccupancy  int
	NodeOccupancy  int
}

// TupleScanner feeds the bulk load at creation time. Next returns io.EOF
// when the relation is exhausted.
type TupleScanner interface {
	Next() (disk.RecordID, []byte, error)
}

// Index is a disk-resident B+-tree over an integer attribute. All page
// access goes through the buffer manager; the tree owns one index file
// whose first page is the meta page.
type Index struct {
	mgr            *buffer.Manager
	file           *disk.PageFile
	indexName      string
	metaPageNo     uint32
	rootPageNo     uint32
	rootIsLeaf     bool
	attrByteOffset int
	attrType       Datatype
	leafOccupancy  int
	nodeOccupancy  int
	scan           *scanState
}

// splitRecord travels up the insert recursion: the page number of the new
// right sibling and the separator key the parent must install.
type splitRecord struct {
	pageNo uint32
	key    int32
}

// IndexFileName returns the file name an index on (relation, offset) uses.
func IndexFileName(relationName string, attrByteOffset int) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

// New opens the index on (relation, attribute offset), creating and
// bulk-loading it from scanner when the index file does not exist yet. An
// existing file's meta page must match the config or ErrBadIndexInfo is
// raised. A nil scanner creates an empty index.
func New(cfg Config, mgr *buffer.Manager, scanner TupleScanner) (*Index, error) {
	if cfg.AttrType != Integer {
		return nil, errors.Wrapf(ErrBadIndexInfo, "unsupported attribute type %d", cfg.AttrType)
	}

	ix := &Index{
		mgr:            mgr,
		indexName:      IndexFileName(cfg.RelationName, cfg.AttrByteOffset),
		attrByteOffset: cfg.AttrByteOffset,
		attrType:       cfg.AttrType,
		leafOccupancy:  cfg.LeafOccupancy,
		nodeOccupancy:  cfg.NodeOccupancy,
	}
	if ix.leafOccupancy <= 0 {
		ix.leafOccupancy = defaultLeafOccupancy
	}
	if ix.nodeOccupancy <= 0 {
		ix.nodeOccupancy = defaultNodeOccupancy
	}

	if disk.Exists(ix.indexName) {
		if err := ix.open(cfg); err != nil {
			return nil, err
		}
		return ix, nil
	}

	if err := ix.create(cfg, scanner); err != nil {
		return nil, err
	}
	return ix, nil
}

// IndexName returns the name of the index file.
func (ix *Index) IndexName() string {
	return ix.indexName
}

// open reads and validates the meta page of an existing index file.
func (ix *Index) open(cfg Config) error {
	file, err := disk.OpenPageFile(ix.indexName, false)
	if err != nil {
		return err
	}
	ix.file = file
	ix.metaPageNo = file.FirstPageNo()

	frame, err := ix.mgr.ReadPage(ix.file, ix.metaPageNo)
	if err != nil {
		return err
	}
	meta, err := util.ToStruct[indexMeta](frame)
	if unpinErr := ix.mgr.UnpinPage(ix.file, ix.metaPageNo, false); err == nil {
		err = unpinErr
	}
	if err != nil {
		return err
	}

	if meta.RelationName != truncName(cfg.RelationName) ||
		int(meta.AttrByteOffset) != cfg.AttrByteOffset ||
		Datatype(meta.AttrType) != cfg.AttrType {
		_ = file.Close()
		return errors.Wrapf(ErrBadIndexInfo, "meta page of %s does not match (relation %q offset %d type %d)",
			ix.indexName, cfg.RelationName, cfg.AttrByteOffset, cfg.AttrType)
	}

	ix.rootPageNo = meta.RootPageNo
	ix.rootIsLeaf = meta.RootIsLeaf
	ix.leafOccupancy = int(meta.LeafOccupancy)
	ix.nodeOccupancy = int(meta.NodeOccupancy)
	return nil
}

// create writes the meta page and an empty leaf root, then bulk-loads
// every tuple the scanner yields and flushes the file.
func (ix *Index) create(cfg Config, scanner TupleScanner) error {
	file, err := disk.OpenPageFile(ix.indexName, true)
	if err != nil {
		return err
	}
	ix.file = file

	metaPageNo, metaFrame, err := ix.mgr.AllocPage(ix.file)
	if err != nil {
		return err
	}
	ix.metaPageNo = metaPageNo

	rootPageNo, rootFrame, err := ix.mgr.AllocPage(ix.file)
	if err != nil {
		return err
	}
	ix.rootPageNo = rootPageNo
	ix.rootIsLeaf = true

	if err := storeNode(rootFrame, newLeafNode(ix.leafOccupancy)); err != nil {
		return err
	}
	if err := storeNode(metaFrame, ix.meta()); err != nil {
		return err
	}
	if err := ix.mgr.UnpinPage(ix.file, rootPageNo, true); err != nil {
		return err
	}
	if err := ix.mgr.UnpinPage(ix.file, metaPageNo, true); err != nil {
		return err
	}

	if scanner != nil {
		if err := ix.bulkLoad(scanner); err != nil {
			return err
		}
	}
	return ix.mgr.FlushFile(ix.file)
}

func (ix *Index) bulkLoad(scanner TupleScanner) error {
	for {
		rid, record, err := scanner.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if len(record) < ix.attrByteOffset+4 {
			return errors.Errorf("record of %d bytes has no integer at offset %d", len(record), ix.attrByteOffset)
		}
		key := int32(binary.LittleEndian.Uint32(record[ix.attrByteOffset:]))
		if err := ix.Insert(key, rid); err != nil {
			return err
		}
	}
}

// Insert adds (key, rid) to the tree, splitting nodes as needed. A split
// that reaches the root grows the tree by one level and rewrites the meta
// page in the same operation.
func (ix *Index) Insert(key int32, rid disk.RecordID) error {
	var sr *splitRecord
	var err error

	if ix.rootIsLeaf {
		sr, err = ix.insertIntoLeaf(ix.rootPageNo, key, rid)
	} else {
		sr, err = ix.insertIntoSubtree(ix.rootPageNo, key, rid)
	}
	if err != nil || sr == nil {
		return err
	}

	newRootNo, frame, err := ix.mgr.AllocPage(ix.file)
	if err != nil {
		return err
	}

	root := newInternalNode(ix.nodeOccupancy)
	if ix.rootIsLeaf {
		root.Level = 1
	}
	root.Keys[0] = sr.key
	root.Children[0] = ix.rootPageNo
	root.Children[1] = sr.pageNo

	if err := storeNode(frame, root); err != nil {
		return err
	}
	if err := ix.mgr.UnpinPage(ix.file, newRootNo, true); err != nil {
		return err
	}

	ix.rootPageNo = newRootNo
	ix.rootIsLeaf = false
	return ix.writeMeta()
}

// insertIntoSubtree descends one internal level. The node is unpinned
// across the recursive call and re-read only if a split comes back.
func (ix *Index) insertIntoSubtree(pageNo uint32, key int32, rid disk.RecordID) (*splitRecord, error) {
	node, err := ix.loadInternal(pageNo)
	if err != nil {
		return nil, err
	}

	childIdx := node.childIndexFor(key)
	childPageNo := node.Children[childIdx]
	nextIsLeaf := node.Level == 1

	if err := ix.mgr.UnpinPage(ix.file, pageNo, false); err != nil {
		return nil, err
	}

	var sr *splitRecord
	if nextIsLeaf {
		sr, err = ix.insertIntoLeaf(childPageNo, key, rid)
	} else {
		sr, err = ix.insertIntoSubtree(childPageNo, key, rid)
	}
	if err != nil || sr == nil {
		return nil, err
	}

	node, frame, err := ix.loadInternalFrame(pageNo)
	if err != nil {
		return nil, err
	}

	if node.liveChildren() <= ix.nodeOccupancy {
		node.installChild(sr.key, sr.pageNo)
		if err := storeNode(frame, node); err != nil {
			return nil, err
		}
		return nil, ix.mgr.UnpinPage(ix.file, pageNo, true)
	}

	return ix.splitInternal(pageNo, node, frame, sr)
}

// insertIntoLeaf places the entry in the leaf, splitting it when full.
func (ix *Index) insertIntoLeaf(pageNo uint32, key int32, rid disk.RecordID) (*splitRecord, error) {
	leaf, frame, err := ix.loadLeafFrame(pageNo)
	if err != nil {
		return nil, err
	}

	live := leaf.liveCount()
	if live < ix.leafOccupancy {
		leaf.insertAt(leaf.insertIndex(key, live), live, key, rid)
		if err := storeNode(frame, leaf); err != nil {
			return nil, err
		}
		return nil, ix.mgr.UnpinPage(ix.file, pageNo, true)
	}

	return ix.splitLeaf(pageNo, leaf, frame, key, rid)
}

// splitLeaf redistributes the full leaf plus the incoming entry around the
// midpoint: the old leaf keeps merged[:mid], the new right sibling takes
// merged[mid:], and the right sibling's first key goes up as separator.
func (ix *Index) splitLeaf(pageNo uint32, leaf *leafNode, frame []byte, key int32, rid disk.RecordID) (*splitRecord, error) {
	occ := ix.leafOccupancy
	pos := leaf.insertIndex(key, occ)
	mid := (occ + 2) / 2

	mergedKeys := mergeAt(leaf.Keys[:occ], pos, key)
	mergedRids := mergeAt(leaf.Rids[:occ], pos, rid)

	newPageNo, newFrame, err := ix.mgr.AllocPage(ix.file)
	if err != nil {
		return nil, err
	}

	right := newLeafNode(occ)
	copy(right.Keys, mergedKeys[mid:])
	copy(right.Rids, mergedRids[mid:])
	right.RightSib = leaf.RightSib

	left := newLeafNode(occ)
	copy(left.Keys, mergedKeys[:mid])
	copy(left.Rids, mergedRids[:mid])
	left.RightSib = newPageNo

	if err := storeNode(newFrame, right); err != nil {
		return nil, err
	}
	if err := storeNode(frame, left); err != nil {
		return nil, err
	}
	if err := ix.mgr.UnpinPage(ix.file, newPageNo, true); err != nil {
		return nil, err
	}
	if err := ix.mgr.UnpinPage(ix.file, pageNo, true); err != nil {
		return nil, err
	}

	return &splitRecord{pageNo: newPageNo, key: right.Keys[0]}, nil
}

// splitInternal redistributes the full node plus the incoming separator:
// the old node keeps keys merged[:mid] with children merged[:mid+1], the
// new right sibling takes keys merged[mid+1:] with children merged[mid+1:],
// and merged[mid] is sent up.
func (ix *Index) splitInternal(pageNo uint32, node *internalNode, frame []byte, incoming *splitRecord) (*splitRecord, error) {
	occ := ix.nodeOccupancy
	pos := 0
	for pos < occ && node.Keys[pos] <= incoming.key {
		pos++
	}
	mid := (occ + 2) / 2

	mergedKeys := mergeAt(node.Keys[:occ], pos, incoming.key)
	mergedChildren := mergeAt(node.Children[:occ+1], pos+1, incoming.pageNo)

	newPageNo, newFrame, err := ix.mgr.AllocPage(ix.file)
	if err != nil {
		return nil, err
	}

	right := newInternalNode(occ)
	right.Level = node.Level
	copy(right.Keys, mergedKeys[mid+1:])
	copy(right.Children, mergedChildren[mid+1:])

	left := newInternalNode(occ)
	left.Level = node.Level
	copy(left.Keys, mergedKeys[:mid])
	copy(left.Children, mergedChildren[:mid+1])

	if err := storeNode(newFrame, right); err != nil {
		return nil, err
	}
	if err := storeNode(frame, left); err != nil {
		return nil, err
	}
	if err := ix.mgr.UnpinPage(ix.file, newPageNo, true); err != nil {
		return nil, err
	}
	if err := ix.mgr.UnpinPage(ix.file, pageNo, true); err != nil {
		return nil, err
	}

	return &splitRecord{pageNo: newPageNo, key: mergedKeys[mid]}, nil
}

// Close ends any active scan, flushes the index file and closes it. Store
// errors from the flush propagate.
func (ix *Index) Close() error {
	if ix.scan != nil {
		if err := ix.EndScan(); err != nil && !errors.Is(err, buffer.ErrPageNotPinned) {
			return err
		}
	}

	if err := ix.mgr.FlushFile(ix.file); err != nil {
		return err
	}
	return ix.file.Close()
}

func (ix *Index) meta() indexMeta {
	return indexMeta{
		RelationName:   truncName(ix.relationNameFromIndex()),
		AttrByteOffset: int32(ix.attrByteOffset),
		AttrType:       int32(ix.attrType),
		RootPageNo:     ix.rootPageNo,
		RootIsLeaf:     ix.rootIsLeaf,
		LeafOccupancy:  int32(ix.leafOccupancy),
		NodeOccupancy:  int32(ix.nodeOccupancy),
	}
}

// writeMeta rewrites the meta page with the current root location.
func (ix *Index) writeMeta() error {
	frame, err := ix.mgr.ReadPage(ix.file, ix.metaPageNo)
	if err != nil {
		return err
	}

	meta, err := util.ToStruct[indexMeta](frame)
	if err != nil {
		_ = ix.mgr.UnpinPage(ix.file, ix.metaPageNo, false)
		return err
	}

	meta.RootPageNo = ix.rootPageNo
	meta.RootIsLeaf = ix.rootIsLeaf
	if err := storeNode(frame, meta); err != nil {
		_ = ix.mgr.UnpinPage(ix.file, ix.metaPageNo, false)
		return err
	}
	return ix.mgr.UnpinPage(ix.file, ix.metaPageNo, true)
}

func (ix *Index) loadLeafFrame(pageNo uint32) (*leafNode, []byte, error) {
	frame, err := ix.mgr.ReadPage(ix.file, pageNo)
	if err != nil {
		return nil, nil, err
	}
	leaf, err := util.ToStruct[leafNode](frame)
	if err != nil {
		_ = ix.mgr.UnpinPage(ix.file, pageNo, false)
		return nil, nil, err
	}
	return &leaf, frame, nil
}

func (ix *Index) loadInternalFrame(pageNo uint32) (*internalNode, []byte, error) {
	frame, err := ix.mgr.ReadPage(ix.file, pageNo)
	if err != nil {
		return nil, nil, err
	}
	node, err := util.ToStruct[internalNode](frame)
	if err != nil {
		_ = ix.mgr.UnpinPage(ix.file, pageNo, false)
		return nil, nil, err
	}
	return &node, frame, nil
}

func (ix *Index) loadInternal(pageNo uint32) (*internalNode, error) {
	node, _, err := ix.loadInternalFrame(pageNo)
	return node, err
}

func storeNode(frame []byte, node any) error {
	data, err := util.ToPageBytes(node, disk.PageSize)
	if err != nil {
		return err
	}
	copy(frame, data)
	return nil
}

// mergeAt returns vals with extra inserted at idx, leaving vals untouched.
func mergeAt[T any](vals []T, idx int, extra T) []T {
	merged := make([]T, 0, len(vals)+1)
	merged = append(merged, vals[:idx]...)
	merged = append(merged, extra)
	merged = append(merged, vals[idx:]...)
	return merged
}

func truncName(name string) string {
	if len(name) > maxRelationName {
		return name[:maxRelationName]
	}
	return name
}

// relationNameFromIndex recovers the relation part of the index file name.
func (ix *Index) relationNameFromIndex() string {
	suffix := fmt.Sprintf(".%d", ix.attrByteOffset)
	return ix.indexName[:len(ix.indexName)-len(suffix)]
}
