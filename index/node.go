package index

import "github.com/burrowdb/burrow/storage/disk"

// Node occupancies derived from the 4 KiB page and the encoded entry
// sizes, with headroom for the codec's framing.
const (
	defaultLeafOccupancy = 96
	defaultNodeOccupancy = 96
)

// maxRelationName is the fixed width of the relation name stored in the
// meta page; longer names are truncated on both store and compare.
const maxRelationName = 20

// indexMeta is the index file's first page. RootPageNo is the only
// runtime source of the root's location; the initial root page number is
// a creation-time artifact, never assumed afterwards.
type indexMeta struct {
	RelationName   string
	AttrByteOffset int32
	AttrType       int32
	RootPageNo     uint32
	RootIsLeaf     bool
	LeafOccupancy  int32
	NodeOccupancy  int32
}

// leafNode holds (key, rid) pairs sorted ascending plus the right-sibling
// link. Entry i is live iff Rids[i].PageNo is non-zero; live entries are
// contiguous from index 0.
type leafNode struct {
	Keys     []int32
	Rids     []disk.RecordID
	RightSib uint32
}

func newLeafNode(occupancy int) *leafNode {
	return &leafNode{
		Keys: make([]int32, occupancy),
		Rids: make([]disk.RecordID, occupancy),
	}
}

// liveCount returns the number of live entries.
func (n *leafNode) liveCount() int {
	for i, rid := range n.Rids {
		if rid.PageNo == disk.InvalidPageNo {
			return i
		}
	}
	return len(n.Rids)
}

// insertAt shift-inserts (key, rid) keeping the live prefix sorted. The
// caller guarantees a free slot.
func (n *leafNode) insertAt(idx, live int, key int32, rid disk.RecordID) {
	copy(n.Keys[idx+1:live+1], n.Keys[idx:live])
	copy(n.Rids[idx+1:live+1], n.Rids[idx:live])
	n.Keys[idx] = key
	n.Rids[idx] = rid
}

// insertIndex returns where key belongs among the live entries; equal keys
// insert after their duplicates.
func (n *leafNode) insertIndex(key int32, live int) int {
	idx := 0
	for idx < live && n.Keys[idx] <= key {
		idx++
	}
	return idx
}

// internalNode holds separator keys and child page numbers. Child i is
// live iff non-zero; a node with k live keys has k+1 live children. Level
// 1 means the children are leaves, 0 that they are internal.
type internalNode struct {
	Level    int32
	Keys     []int32
	Children []uint32
}

func newInternalNode(occupancy int) *internalNode {
	return &internalNode{
		Keys:     make([]int32, occupancy),
		Children: make([]uint32, occupancy+1),
	}
}

// liveChildren returns the number of live child pointers.
func (n *internalNode) liveChildren() int {
	for i, child := range n.Children {
		if child == disk.InvalidPageNo {
			return i
		}
	}
	return len(n.Children)
}

// childIndexFor returns the index of the child to descend into for key:
// the count of live separators that are <= key, so equal keys go right.
func (n *internalNode) childIndexFor(key int32) int {
	liveKeys := n.liveChildren() - 1
	idx := 0
	for idx < liveKeys && n.Keys[idx] <= key {
		idx++
	}
	return idx
}

// scanChildIndexFor returns the child to start a range scan from: the
// count of live separators strictly below low. Unlike the insert descent
// this stops left of an equal separator, so duplicates of the bound that a
// split left in the left subtree are still reached; the leaf chain walk
// skips any extra leading entries.
func (n *internalNode) scanChildIndexFor(low int32) int {
	liveKeys := n.liveChildren() - 1
	idx := 0
	for idx < liveKeys && n.Keys[idx] < low {
		idx++
	}
	return idx
}

// installChild shift-inserts the separator and its right child. The caller
// guarantees a free slot.
func (n *internalNode) installChild(key int32, child uint32) {
	liveKeys := n.liveChildren() - 1

	idx := 0
	for idx < liveKeys && n.Keys[idx] <= key {
		idx++
	}

	copy(n.Keys[idx+1:liveKeys+1], n.Keys[idx:liveKeys])
	copy(n.Children[idx+2:liveKeys+2], n.Children[idx+1:liveKeys+1])
	n.Keys[idx] = key
	n.Children[idx+1] = child
}
