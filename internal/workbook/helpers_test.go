package workbook

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// sheet is a test fixture: first row is the header.
type sheet struct {
	name string
	rows [][]string
}

func buildWorkbook(t *testing.T, sheets ...sheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		sw, err := f.NewStreamWriter(s.name)
		require.NoError(t, err)
		for r, cells := range s.rows {
			values := make([]any, len(cells))
			for k, v := range cells {
				values[k] = v
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, sw.SetRow(cell, values))
		}
		require.NoError(t, sw.Flush())
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func garagesSheet(rows ...[]string) sheet {
	return sheet{name: SheetGarages, rows: append([][]string{{"Garage", "VisibleGarageName"}}, rows...)}
}

func levelsSheet(rows ...[]string) sheet {
	return sheet{name: SheetGarageLevels, rows: append([][]string{{"Garage", "Level", "VisibleLevelName", "MaximumOccupancy", "Server"}}, rows...)}
}

func camerasSheet(rows ...[]string) sheet {
	return sheet{name: SheetCameras, rows: append([][]string{{"Name", "DetectionType", "IPAddress", "Port", "Server"}}, rows...)}
}

func fliSheet(rows ...[]string) sheet {
	return sheet{name: SheetFLICameras, rows: append([][]string{{"Garage", "Level", "CameraName", "IsEntryExitCamera"}}, rows...)}
}

// numberedRows returns n rows produced by fn(i).
func numberedRows(n int, fn func(i int) []string) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func camName(i int) string { return fmt.Sprintf("CAM-%05d", i) }
