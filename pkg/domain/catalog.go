package domain

// Installation carries the site-wide defaults used to seed the certificate
// header of every new session.
type Installation struct {
	ClientName            string  `json:"clientName" yaml:"clientName"`
	SiteAddress           string  `json:"siteAddress" yaml:"siteAddress"`
	SupplyCharacteristics string  `json:"supplyCharacteristics" yaml:"supplyCharacteristics"`
	NominalVoltage        float64 `json:"nominalVoltage" yaml:"nominalVoltage"`
	EarthingArrangement   string  `json:"earthingArrangement" yaml:"earthingArrangement"`
	Ze                    float64 `json:"ze" yaml:"ze"`
}

// Catalog is the read-only circuit test catalog shared by every session.
type Catalog struct {
	version      string
	installation Installation
	circuits     []Circuit
	index        map[CircuitID]int
}

// NewCatalog builds a catalog preserving the supplied circuit order. Later
// circuits with a duplicate id are ignored.
func NewCatalog(version string, installation Installation, circuits []Circuit) *Catalog {
	c := &Catalog{
		version:      version,
		installation: installation,
		circuits:     make([]Circuit, 0, len(circuits)),
		index:        make(map[CircuitID]int, len(circuits)),
	}
	for _, circuit := range circuits {
		if _, dup := c.index[circuit.ID]; dup {
			continue
		}
		c.index[circuit.ID] = len(c.circuits)
		c.circuits = append(c.circuits, cloneCircuit(circuit))
	}
	return c
}

// Version returns the catalog's semantic version string.
func (c *Catalog) Version() string { return c.version }

// Installation returns the installation defaults.
func (c *Catalog) Installation() Installation { return c.installation }

// Circuits returns the circuits in catalog order.
func (c *Catalog) Circuits() []Circuit {
	out := make([]Circuit, len(c.circuits))
	for i, circuit := range c.circuits {
		out[i] = cloneCircuit(circuit)
	}
	return out
}

// Len returns the number of circuits.
func (c *Catalog) Len() int { return len(c.circuits) }

// Circuit returns the circuit with the given id.
func (c *Catalog) Circuit(id CircuitID) (Circuit, bool) {
	i, ok := c.index[id]
	if !ok {
		return Circuit{}, false
	}
	return c.circuits[i], true
}

// Position returns the zero-based catalog position of the circuit, which is
// also the index of its schedule rows.
func (c *Catalog) Position(id CircuitID) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// TotalRequiredTests counts required tests across every circuit.
func (c *Catalog) TotalRequiredTests() int {
	total := 0
	for _, circuit := range c.circuits {
		total += len(circuit.RequiredTests)
	}
	return total
}

func cloneCircuit(c Circuit) Circuit {
	cp := c
	cp.TestPoints = append([]TestPoint(nil), c.TestPoints...)
	cp.RequiredTests = append([]RequiredTest(nil), c.RequiredTests...)
	if c.RCD != nil {
		rcd := *c.RCD
		cp.RCD = &rcd
	}
	return cp
}
