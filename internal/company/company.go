package company

// Company is the slice of the host's business directory the market cares
// about: identity, the economics used to seed an opening price, and the
// flags that decide whether the company gets tradable stock at all.
type Company struct {
	ID           int
	Name         string
	AverageSales float64 // per in-game day
	MinSalary    float64
	TopSalary    float64
	SelfEmployed bool
	Illegal      bool
	PublicFacing bool
}

// Tradable reports whether the company qualifies for a listed stock.
// Self-employed, illegal, and non-public-facing businesses never do.
func (c *Company) Tradable() bool {
	return !c.SelfEmployed && !c.Illegal && c.PublicFacing
}

// Directory is the host-side company lookup the market consumes.
type Directory interface {
	Companies() []*Company
	ByID(id int) (*Company, bool)
}

// roster is the in-memory Directory used by the standalone daemon.
type roster struct {
	list []*Company
	byID map[int]*Company
}

// NewDirectory builds a Directory over a fixed company list.
func NewDirectory(companies []*Company) Directory {
	byID := make(map[int]*Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}
	return &roster{list: companies, byID: byID}
}

func (r *roster) Companies() []*Company { return r.list }

func (r *roster) ByID(id int) (*Company, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// DemoCompanies returns the fixture roster the daemon trades when no host
// game is attached. A few entries are deliberately non-tradable to exercise
// the listing filter, and several share initials to exercise ticker
// disambiguation.
func DemoCompanies() []*Company {
	return []*Company{
		{ID: 1, Name: "Kaizen Electronics", AverageSales: 840.00, MinSalary: 9.50, TopSalary: 32.00, PublicFacing: true},
		{ID: 2, Name: "Starch Kola", AverageSales: 1210.00, MinSalary: 8.00, TopSalary: 24.50, PublicFacing: true},
		{ID: 3, Name: "Coltan Heavy Industries", AverageSales: 2150.00, MinSalary: 11.00, TopSalary: 41.00, PublicFacing: true},
		{ID: 4, Name: "Night Owl Diner", AverageSales: 310.00, MinSalary: 7.25, TopSalary: 14.00, PublicFacing: true},
		{ID: 5, Name: "Harbour Pharmaceuticals", AverageSales: 1675.00, MinSalary: 12.50, TopSalary: 38.00, PublicFacing: true},
		{ID: 6, Name: "Hollow Point Security", AverageSales: 920.00, MinSalary: 10.00, TopSalary: 27.00, PublicFacing: true},
		{ID: 7, Name: "Hazel Park Supermart", AverageSales: 1430.00, MinSalary: 7.75, TopSalary: 18.50, PublicFacing: true},
		{ID: 8, Name: "Meridian Couriers", AverageSales: 540.00, MinSalary: 8.25, TopSalary: 16.00, PublicFacing: true},
		{ID: 9, Name: "Atlas Apparel", AverageSales: 760.00, MinSalary: 8.00, TopSalary: 21.00, PublicFacing: true},
		{ID: 10, Name: "Atlas Autoworks", AverageSales: 1120.00, MinSalary: 10.50, TopSalary: 29.00, PublicFacing: true},
		{ID: 11, Name: "Brightside Dental", AverageSales: 480.00, MinSalary: 13.00, TopSalary: 35.00, PublicFacing: true},
		{ID: 12, Name: "Copper Kettle Brewing", AverageSales: 650.00, MinSalary: 9.00, TopSalary: 19.50, PublicFacing: true},
		{ID: 13, Name: "Vantage Optics", AverageSales: 590.00, MinSalary: 11.50, TopSalary: 30.00, PublicFacing: true},
		{ID: 14, Name: "Drummond Freight", AverageSales: 1890.00, MinSalary: 10.00, TopSalary: 26.00, PublicFacing: true},
		{ID: 15, Name: "Lantern Books", AverageSales: 270.00, MinSalary: 7.50, TopSalary: 13.50, PublicFacing: true},
		{ID: 16, Name: "Back Alley Imports", AverageSales: 1500.00, MinSalary: 6.00, TopSalary: 50.00, PublicFacing: true, Illegal: true},
		{ID: 17, Name: "Mo's Shoe Repair", AverageSales: 95.00, MinSalary: 7.25, TopSalary: 7.25, PublicFacing: true, SelfEmployed: true},
		{ID: 18, Name: "Cityworks Maintenance", AverageSales: 880.00, MinSalary: 9.75, TopSalary: 22.00, PublicFacing: false},
	}
}
