// Package exportcsv renders the registry's current state as CSV (spec §3
// supplemented feature: a plain tabular dump, distinct from the
// out-of-scope spreadsheet sink named in §1's Non-goals).
package exportcsv

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/solveiti/trgscout/internal/types"
)

var header = []string{
	"url", "is_valid", "is_automoto",
	"new_vehicle_count", "used_vehicle_count", "test_vehicle_count", "total_vehicle_count",
	"created_at", "updated_at",
}

// Write renders stores as CSV to w, one row per store, ordered as given.
func Write(w io.Writer, stores []types.Store) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, st := range stores {
		if err := cw.Write(row(st)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(st types.Store) []string {
	autoMoto := ""
	if st.IsAutoMoto != nil {
		autoMoto = strconv.FormatBool(*st.IsAutoMoto)
	}
	return []string{
		st.URL,
		strconv.FormatBool(st.IsValid),
		autoMoto,
		strconv.Itoa(st.NewVehicleCount),
		strconv.Itoa(st.UsedVehicleCount),
		strconv.Itoa(st.TestVehicleCount),
		strconv.Itoa(st.TotalVehicleCount),
		st.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		st.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
}
