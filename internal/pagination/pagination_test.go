package pagination

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"empty", PageRequest{}, PageRequest{Page: 1, PageSize: DefaultPageSize}},
		{"negative", PageRequest{Page: -3, PageSize: -1}, PageRequest{Page: 1, PageSize: DefaultPageSize}},
		{"too_large", PageRequest{Page: 2, PageSize: 500}, PageRequest{Page: 2, PageSize: MaxPageSize}},
		{"kept", PageRequest{Page: 3, PageSize: 15}, PageRequest{Page: 3, PageSize: 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Defaults()
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[int](nil, 2, 10, 25)
	if resp.TotalPages != 3 || !resp.HasNext {
		t.Errorf("expected 3 pages with a next page, got %+v", resp)
	}
	if resp.Data == nil {
		t.Error("data must serialize as an empty list")
	}

	last := NewPageResponse([]int{1}, 3, 10, 21)
	if last.HasNext {
		t.Error("last page must not report a next page")
	}

	empty := NewPageResponse[int](nil, 1, 10, 0)
	if empty.TotalPages != 0 || empty.HasNext {
		t.Errorf("unexpected empty response %+v", empty)
	}
}

type row struct {
	ID   int `gorm:"primaryKey"`
	Kind string
}

func TestFetch(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:pagination?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for i := 1; i <= 7; i++ {
		kind := "a"
		if i%2 == 0 {
			kind = "b"
		}
		db.Create(&row{ID: i, Kind: kind})
	}

	q := db.Model(&row{}).Where("kind = ?", "a")
	page, err := Fetch[row](q, PageRequest{Page: 2, PageSize: 3}, "id DESC")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.TotalItems != 4 || page.TotalPages != 2 || page.HasNext {
		t.Errorf("unexpected metadata %+v", page)
	}
	if len(page.Data) != 1 || page.Data[0].ID != 1 {
		t.Errorf("expected only row 1 on the second page, got %+v", page.Data)
	}
}
