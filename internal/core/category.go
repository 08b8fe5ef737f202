package core

// Category describes how a transaction category is displayed. Icon is a
// Material Icons ligature name and Color a CSS hex color.
type Category struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Type  TransactionType `json:"type"`
	Color string          `json:"color"`
}

// CategoryLookup resolves a category id to its display metadata.
type CategoryLookup interface {
	Lookup(id string) (Category, bool)
}

// Catalog is an immutable, ordered set of categories.
type Catalog struct {
	entries []Category
	byID    map[string]int
}

// NewCatalog builds a catalog. Later duplicates of an id are ignored.
func NewCatalog(categories ...Category) *Catalog {
	c := &Catalog{
		entries: make([]Category, 0, len(categories)),
		byID:    make(map[string]int, len(categories)),
	}
	for _, cat := range categories {
		if _, dup := c.byID[cat.ID]; dup {
			continue
		}
		c.byID[cat.ID] = len(c.entries)
		c.entries = append(c.entries, cat)
	}
	return c
}

// DefaultCatalog returns the built-in categories.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Category{ID: "salary", Name: "Salário", Icon: "work", Type: Income, Color: "#10b981"},
		Category{ID: "freelance", Name: "Freelance", Icon: "computer", Type: Income, Color: "#3b82f6"},
		Category{ID: "investment", Name: "Investimentos", Icon: "trending_up", Type: Income, Color: "#8b5cf6"},
		Category{ID: "other_income", Name: "Outros", Icon: "attach_money", Type: Income, Color: "#06b6d4"},

		Category{ID: "food", Name: "Alimentação", Icon: "restaurant", Type: Expense, Color: "#ef4444"},
		Category{ID: "transport", Name: "Transporte", Icon: "directions_car", Type: Expense, Color: "#f97316"},
		Category{ID: "shopping", Name: "Compras", Icon: "shopping_bag", Type: Expense, Color: "#ec4899"},
		Category{ID: "bills", Name: "Contas", Icon: "receipt", Type: Expense, Color: "#8b5cf6"},
		Category{ID: "health", Name: "Saúde", Icon: "local_hospital", Type: Expense, Color: "#06b6d4"},
		Category{ID: "entertainment", Name: "Lazer", Icon: "movie", Type: Expense, Color: "#f59e0b"},
		Category{ID: "education", Name: "Educação", Icon: "school", Type: Expense, Color: "#10b981"},
		Category{ID: "other_expense", Name: "Outros", Icon: "more_horiz", Type: Expense, Color: "#6b7280"},
	)
}

// Lookup returns the category with the given id.
func (c *Catalog) Lookup(id string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Category{}, false
	}
	return c.entries[i], true
}

// List returns the categories of the given type in catalog order, or every
// category when t is empty.
func (c *Catalog) List(t TransactionType) []Category {
	if c == nil {
		return nil
	}
	out := make([]Category, 0, len(c.entries))
	for _, cat := range c.entries {
		if t == "" || cat.Type == t {
			out = append(out, cat)
		}
	}
	return out
}

// Icon returns the icon for id, falling back to a generic one.
func (c *Catalog) Icon(id string) string {
	if cat, ok := c.Lookup(id); ok {
		return cat.Icon
	}
	return "category"
}

// Name returns the display name for id, falling back to the id itself.
func (c *Catalog) Name(id string) string {
	if cat, ok := c.Lookup(id); ok {
		return cat.Name
	}
	return id
}
