package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Metadata holds counters derived from the node tree. They are recomputed by
// every structural mutation.
type Metadata struct {
	TotalNodes     int    `json:"total_nodes"`
	TotalSubnodes  int    `json:"total_subnodes"`
	LastEditedNode string `json:"last_edited_node,omitempty"`
}

type SubNode struct {
	ID      string
	Type    SubNodeType
	Content Content
	Order   int
}

type Node struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SubNodes  []SubNode `json:"subnodes"`
	Order     int       `json:"order"`
	Collapsed bool      `json:"collapsed"`
}

type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	YoutubeURL string    `json:"youtube_url,omitempty"`
	Nodes      []Node    `json:"nodes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Metadata   Metadata  `json:"metadata"`
}

// NewSubNode builds a subnode, rejecting content that does not agree with typ.
func NewSubNode(id string, typ SubNodeType, content Content, order int) (SubNode, error) {
	if err := checkContent(typ, content); err != nil {
		return SubNode{}, err
	}
	return SubNode{ID: id, Type: typ, Content: cloneContent(content), Order: order}, nil
}

// NewNode builds a node; the given subnodes are renumbered by position.
func NewNode(id, title string, order int, subnodes ...SubNode) Node {
	return Node{
		ID:       id,
		Title:    title,
		SubNodes: renumber(cloneSubNodes(subnodes)),
		Order:    order,
	}
}

// NewDocument builds a document with nodes renumbered and metadata counted.
func NewDocument(id, title, youtubeURL string, now time.Time, nodes ...Node) Document {
	doc := Document{
		ID:         id,
		Title:      title,
		YoutubeURL: youtubeURL,
		Nodes:      renumber(cloneNodes(nodes)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return doc.recount()
}

// FindNode returns the node with the given id.
func (d Document) FindNode(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// FindSubNode returns the subnode with the given id.
func (n Node) FindSubNode(id string) (SubNode, bool) {
	for _, s := range n.SubNodes {
		if s.ID == id {
			return s, true
		}
	}
	return SubNode{}, false
}

// OrderedNodes returns a copy of the nodes sorted by Order.
func (d Document) OrderedNodes() []Node {
	out := cloneNodes(d.Nodes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// OrderedSubNodes returns a copy of the subnodes sorted by Order.
func (n Node) OrderedSubNodes() []SubNode {
	out := cloneSubNodes(n.SubNodes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// NodeIDs lists node ids in order.
func (d Document) NodeIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for _, n := range d.OrderedNodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

// SubNodeIDs lists subnode ids in order.
func (n Node) SubNodeIDs() []string {
	ids := make([]string, 0, len(n.SubNodes))
	for _, s := range n.OrderedSubNodes() {
		ids = append(ids, s.ID)
	}
	return ids
}

func (d Document) countSubNodes() int {
	total := 0
	for _, n := range d.Nodes {
		total += len(n.SubNodes)
	}
	return total
}

func (d Document) recount() Document {
	d.Metadata.TotalNodes = len(d.Nodes)
	d.Metadata.TotalSubnodes = d.countSubNodes()
	return d
}

// Validate checks the structural invariants: contiguous sibling orders,
// unique ids, consistent metadata and well formed content.
func (d Document) Validate() error {
	if d.Metadata.TotalNodes != len(d.Nodes) {
		return fmt.Errorf("document %s: total_nodes=%d but has %d nodes", d.ID, d.Metadata.TotalNodes, len(d.Nodes))
	}
	if total := d.countSubNodes(); d.Metadata.TotalSubnodes != total {
		return fmt.Errorf("document %s: total_subnodes=%d but has %d subnodes", d.ID, d.Metadata.TotalSubnodes, total)
	}
	if err := checkSiblings(d.Nodes); err != nil {
		return fmt.Errorf("document %s: %w", d.ID, err)
	}
	for _, n := range d.Nodes {
		if err := checkSiblings(n.SubNodes); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		for _, s := range n.SubNodes {
			if err := checkContent(s.Type, s.Content); err != nil {
				return fmt.Errorf("subnode %s: %w", s.ID, err)
			}
		}
	}
	return nil
}

func checkSiblings[T sibling[T]](items []T) error {
	seenIDs := make(map[string]struct{}, len(items))
	seenOrders := make(map[int]struct{}, len(items))
	for _, item := range items {
		if _, dup := seenIDs[item.siblingID()]; dup {
			return fmt.Errorf("duplicate id %s", item.siblingID())
		}
		seenIDs[item.siblingID()] = struct{}{}

		order := item.siblingOrder()
		if order < 0 || order >= len(items) {
			return fmt.Errorf("order %d out of range 0..%d", order, len(items)-1)
		}
		if _, dup := seenOrders[order]; dup {
			return fmt.Errorf("duplicate order %d", order)
		}
		seenOrders[order] = struct{}{}
	}
	return nil
}

func (d Document) clone() Document {
	d.Nodes = cloneNodes(d.Nodes)
	return d
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		n.SubNodes = cloneSubNodes(n.SubNodes)
		out[i] = n
	}
	return out
}

func cloneSubNodes(subnodes []SubNode) []SubNode {
	if subnodes == nil {
		return []SubNode{}
	}
	out := make([]SubNode, len(subnodes))
	for i, s := range subnodes {
		s.Content = cloneContent(s.Content)
		out[i] = s
	}
	return out
}

type subNodeJSON struct {
	ID      string        `json:"id"`
	Type    SubNodeType   `json:"type"`
	Content ContentRecord `json:"content"`
	Order   int           `json:"order"`
}

func (s SubNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(subNodeJSON{
		ID:      s.ID,
		Type:    s.Type,
		Content: RecordOf(s.Content),
		Order:   s.Order,
	})
}

func (s *SubNode) UnmarshalJSON(data []byte) error {
	var raw subNodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := raw.Content.Decode(raw.Type)
	if err != nil {
		return err
	}
	*s = SubNode{ID: raw.ID, Type: raw.Type, Content: content, Order: raw.Order}
	return nil
}
