package aggregate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hurttlocker/chatnote/internal/chat"
)

const boldNote = `# Phở Thìn Lò Đúc

- **Loại**: Nhà hàng
- **Địa điểm**: 13 Lò Đúc, Hà Nội
- **Thời gian**: Tối thứ bảy
- **Ghi chú**: Nên đến sớm
- **Ngữ cảnh**: Bình rủ An đi ăn
`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want EventRecord
	}{
		{
			name: "bold labels",
			in:   boldNote,
			want: EventRecord{Ordinal: 1, Title: "Phở Thìn Lò Đúc", Category: "Nhà hàng", Location: "13 Lò Đúc, Hà Nội", Time: "Tối thứ bảy", Notes: "Nên đến sớm", Context: "Bình rủ An đi ăn"},
		},
		{
			name: "colon inside bold",
			in:   "## Cộng Cà Phê\n\n* **Loại:** Quán cafe\n* **Ghi chú:** Có wifi\r\n",
			want: EventRecord{Ordinal: 1, Title: "Cộng Cà Phê", Category: "Quán cafe", Notes: "Có wifi"},
		},
		{
			name: "plain bullets",
			in:   "### Hội sách\n\t•\tLoại: Sự kiện\n\t•\tThời gian: 20/10\n",
			want: EventRecord{Ordinal: 1, Title: "Hội sách", Category: "Sự kiện", Time: "20/10"},
		},
		{
			name: "numbered list",
			in:   "# Phở Thìn\n\n1. **Loại**: Nhà hàng\n2. **Địa điểm**: Lò Đúc\n3) Thời gian: Tối nay\n4. **Ghi chú:** Đông khách\n5. **Ngữ cảnh**: Hẹn ăn tối\n",
			want: EventRecord{Ordinal: 1, Title: "Phở Thìn", Category: "Nhà hàng", Location: "Lò Đúc", Time: "Tối nay", Notes: "Đông khách", Context: "Hẹn ăn tối"},
		},
		{
			name: "bold label after other text",
			in:   "## Cộng Cà Phê\n- Thông tin: **Loại**: Quán cafe\nGợi ý **Địa điểm:** 152 Trung Liệt\n",
			want: EventRecord{Ordinal: 1, Title: "Cộng Cà Phê", Category: "Quán cafe", Location: "152 Trung Liệt"},
		},
		{
			name: "nothing matches",
			in:   "Xin lỗi, tôi không tìm thấy địa điểm nào.",
			want: EventRecord{Ordinal: 1},
		},
		{
			name: "empty",
			in:   "",
			want: EventRecord{Ordinal: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(1, tt.in))
		})
	}
}

func TestRowOrder(t *testing.T) {
	r := Parse(1, boldNote)
	assert.Equal(t, []string{"Phở Thìn Lò Đúc", "Nhà hàng", "13 Lò Đúc, Hà Nội", "Tối thứ bảy", "Nên đến sớm", "Bình rủ An đi ăn"}, r.Row())
	assert.Len(t, Fields, 6)
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event_10.md"), []byte("# Ten"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event_2.md"), []byte("# Two\n**Loại**: Quán"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event_1.md"), []byte("no fields"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("# skip"), 0644))

	records, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{records[0].Ordinal, records[1].Ordinal, records[2].Ordinal})
	assert.Equal(t, "", records[0].Title)
	assert.Equal(t, "Quán", records[1].Category)
	assert.Equal(t, "Ten", records[2].Title)
}

func TestReadDirMissing(t *testing.T) {
	_, err := ReadDir(filepath.Join(t.TempDir(), "nope"))
	var lerr *chat.LoadError
	require.ErrorAs(t, err, &lerr)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(time.Date(2024, 3, 5, 23, 0, 0, 0, time.Local)))
	assert.Equal(t, "events_2024-03-05.xlsx", filepath.Base(path))

	records := []EventRecord{Parse(1, boldNote), Parse(2, "nothing")}
	require.NoError(t, WriteXLSX(path, records))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, []string{"Tên địa điểm/sự kiện", "Loại", "Địa điểm", "Thời gian", "Ghi chú", "Ngữ cảnh"}, rows[0])
	assert.Equal(t, records[0].Row(), rows[1])

	for i, col := range []string{"A", "B", "C", "D", "E", "F"} {
		w, err := f.GetColWidth(SheetName, col)
		require.NoError(t, err)
		assert.Equal(t, Fields[i].Width, w, col)
	}
}

func TestWorkbookRowCount(t *testing.T) {
	var records []EventRecord
	for k := 1; k <= 4; k++ {
		records = append(records, Parse(k, boldNote))
	}
	wb, err := Workbook(records)
	require.NoError(t, err)
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}
