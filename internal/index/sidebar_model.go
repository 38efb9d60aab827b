package index

import "git.home.luguber.info/inful/navindex/internal/sidebar"

// SidebarItem types as rendered by the site theme.
const (
	SidebarItemLink     = "link"
	SidebarItemCategory = "category"
)

// SidebarItem is the JSON shape of one sidebar entry consumed by the site.
type SidebarItem struct {
	Type        string        `json:"type"`
	Label       string        `json:"label"`
	Href        string        `json:"href,omitempty"`
	DocID       string        `json:"docId,omitempty"`
	Collapsible *bool         `json:"collapsible,omitempty"`
	Collapsed   *bool         `json:"collapsed,omitempty"`
	Items       []SidebarItem `json:"items,omitempty"`
}

// Sidebar renders the tree as sidebar items: documents become links to their
// permalink, categories carry their children.
func (x *Index) Sidebar() []SidebarItem {
	return x.sidebarItems(x.tree.Root.Children)
}

func (x *Index) sidebarItems(children []sidebar.Item) []SidebarItem {
	items := make([]SidebarItem, 0, len(children))
	for _, child := range children {
		switch it := child.(type) {
		case sidebar.DocItem:
			e := x.entries[x.byID[it.Doc.ID]]
			items = append(items, SidebarItem{
				Type:  SidebarItemLink,
				Label: e.Title,
				Href:  e.Permalink,
				DocID: e.ID,
			})
		case *sidebar.CategoryNode:
			collapsible, collapsed := it.Collapsible, it.Collapsed
			items = append(items, SidebarItem{
				Type:        SidebarItemCategory,
				Label:       it.Label,
				Collapsible: &collapsible,
				Collapsed:   &collapsed,
				Items:       x.sidebarItems(it.Children),
			})
		}
	}
	return items
}
