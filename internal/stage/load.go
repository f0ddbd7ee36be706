package stage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	id "clearance/pkg/domain"
)

// Load reads stage definitions from JSON. The file declares the same shape
// Stage serializes to:
//
//	[
//	  {"id": "payment", "display_name": "Payment Verification", "order": 1},
//	  {"id": "dept", "display_name": "Department Clearance", "order": 2,
//	   "prerequisites": ["payment"], "scope_required": true}
//	]
//
// Arbitrary prerequisite DAGs are allowed; NewCatalog validates them.
func Load(r io.Reader) (*Catalog, error) {
	var stages []Stage
	if err := json.NewDecoder(r).Decode(&stages); err != nil {
		return nil, fmt.Errorf("decode stage definitions: %w", err)
	}
	return NewCatalog(stages...)
}

// LoadFile reads stage definitions from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stage definitions: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default is the built-in catalog: a payment gate fanned out to the
// clearance offices, with scoped department review.
func Default() *Catalog {
	c, err := NewCatalog(
		Stage{ID: id.StageID("payment-verification"), DisplayName: "Payment Verification", Order: 1},
		Stage{ID: id.StageID("department-clearance"), DisplayName: "Department Clearance", Order: 2,
			Prerequisites: []id.StageID{"payment-verification"}, ScopeRequired: true},
		Stage{ID: id.StageID("library-clearance"), DisplayName: "Library Clearance", Order: 3,
			Prerequisites: []id.StageID{"payment-verification"}},
		Stage{ID: id.StageID("bursary-clearance"), DisplayName: "Bursary Clearance", Order: 4,
			Prerequisites: []id.StageID{"payment-verification"}},
		Stage{ID: id.StageID("student-affairs"), DisplayName: "Student Affairs Clearance", Order: 5,
			Prerequisites: []id.StageID{"library-clearance", "bursary-clearance"}},
	)
	if err != nil {
		// The default catalog is a compile-time constant in spirit; a
		// construction failure is a programming error.
		panic(err)
	}
	return c
}
