package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeColumn(t *testing.T) {
	testCases := []struct {
		raw  string
		want string
	}{
		{"UDI-DI", "udi_di"},
		{"MANUFACTURER.NAME", "manufacturer_name"},
		{"FOI_TEXT", "foi_text"},
		{"  Brand Name ", "brand_name"},
		{"DEVICE_REPORT_PRODUCT_CODE", "device_report_product_code"},
		{"1st_seen", "_1st_seen"},
		{"a/b(c)", "a_b_c_"},
		{"Ümlaut", "_mlaut"},
		{"", "column"},
		{"   ", "column"},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeColumn(tc.raw))
		})
	}
}

func TestNormalizeColumn_Idempotent(t *testing.T) {
	for _, raw := range []string{"UDI-DI", "1st", "x.y-z", "Brand Name"} {
		once := NormalizeColumn(raw)
		assert.Equal(t, once, NormalizeColumn(once), "normalizing %q twice should be stable", raw)
	}
}

func TestNormalizeHeader_Collisions(t *testing.T) {
	got := NormalizeHeader([]string{"A-B", "a.b", "A_B", "row_hash", "C"})
	assert.Equal(t, []string{"a_b", "a_b_2", "a_b_3", "row_hash_2", "c"}, got)
}

func TestNormalizeHeader_Deterministic(t *testing.T) {
	header := []string{"MDR_REPORT_KEY", "FOI-TEXT", "foi.text"}
	assert.Equal(t, NormalizeHeader(header), NormalizeHeader(header))
}
