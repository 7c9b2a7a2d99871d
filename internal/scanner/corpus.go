package scanner

// Corpus is an immutable snapshot of the orderId -> printCode mapping.
// The order service rebuilds it wholesale whenever the order set changes and
// swaps the pointer; readers never see a partially updated mapping.
type Corpus struct {
	version uint64
	codes   map[string]string
	values  []string
}

// NewCorpus builds a snapshot from an orderId -> printCode mapping
func NewCorpus(version uint64, mapping map[string]string) *Corpus {
	codes := make(map[string]string, len(mapping))
	values := make([]string, 0, len(mapping))
	for orderID, printCode := range mapping {
		codes[orderID] = printCode
		if printCode != "" {
			values = append(values, printCode)
		}
	}
	return &Corpus{version: version, codes: codes, values: values}
}

// Version returns the rebuild counter of this snapshot
func (c *Corpus) Version() uint64 {
	return c.version
}

// Len returns the number of order ids in the corpus
func (c *Corpus) Len() int {
	return len(c.codes)
}

// PrintCode looks up the print code for an exact order id key
func (c *Corpus) PrintCode(orderID string) (string, bool) {
	code, ok := c.codes[orderID]
	return code, ok
}

// Values returns the barcode payloads known to the corpus
func (c *Corpus) Values() []string {
	return c.values
}

// OrderIDForValue finds the order id that owns a barcode payload
func (c *Corpus) OrderIDForValue(value string) (string, bool) {
	for orderID, code := range c.codes {
		if code == value {
			return orderID, true
		}
	}
	return "", false
}
