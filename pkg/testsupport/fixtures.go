// Package testsupport provides fakes of the remote API boundary and fixture
// helpers shared by package tests.
package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-feedcache/api"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadProducts loads a JSON array of product records.
func LoadProducts(t *testing.T, path string) []api.Product {
	t.Helper()

	var products []api.Product
	LoadFixtureJSON(t, path, &products)
	return products
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// DefaultStatus is a plausible account status with the usual server ceilings.
func DefaultStatus() *api.Status {
	return &api.Status{
		UserID:        70123,
		PlanID:        30600000,
		BillDay:       25,
		MaxTotal:      10000,
		MaxLength:     100,
		MaxRequests:   100000,
		RequestCount:  11061,
		NetworkCount:  227,
		ProductCount:  797373259,
		MerchantCount: 84031,
	}
}
