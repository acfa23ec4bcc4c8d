package catalog

import (
	"context"
	"testing"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ProductCode: "K1", ProductName: "Máy khò hàn Kaisi", Category: "Máy khò", Properties: "MODEL:8512P", Inventory: 5},
		{ProductCode: "K2", ProductName: "Máy khò hàn Kaisi", Category: "Máy khò", Properties: "MODEL:8512D", Inventory: 0},
		{ProductCode: "H1", ProductName: "Mỏ hàn thiếc", Category: "Mỏ hàn", Properties: "60W", Inventory: 12},
		{ProductCode: "T1", ProductName: "Tô vít 2 cạnh", Category: "Dụng cụ", Properties: "", Inventory: 30},
		{ProductCode: "P1", ProductName: "iPhone 15 Pro Max", Category: "Điện thoại", Properties: "màu xanh", Trademark: "Apple", Inventory: 3},
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Máy Khò":  "may kho",
		"Đống Đa":  "dong da",
		"tô vít":   "to vit",
		"iphone":   "iphone",
		"điện":     "dien",
		"MÀU XANH": "mau xanh",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestSearch_RanksExactNameFirst(t *testing.T) {
	idx := NewIndex(sampleProducts())
	got, err := idx.Search(context.Background(), Query{Name: "máy khò kaisi", PageSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("no results")
	}
	if got[0].Category != "Máy khò" {
		t.Errorf("top result category = %q; want Máy khò", got[0].Category)
	}
}

func TestSearch_UnaccentedQueryMatches(t *testing.T) {
	idx := NewIndex(sampleProducts())
	got, _ := idx.Search(context.Background(), Query{Name: "may kho", PageSize: 8})
	if len(got) < 2 {
		t.Fatalf("unaccented query found %d products; want >= 2", len(got))
	}
}

func TestSearch_StrictProperties(t *testing.T) {
	idx := NewIndex(sampleProducts())
	got, _ := idx.Search(context.Background(), Query{
		Name: "máy khò", Properties: "8512P", StrictProperties: true, PageSize: 8,
	})
	if len(got) != 1 || got[0].ProductCode != "K1" {
		t.Fatalf("strict properties returned %+v", got)
	}
}

func TestSearch_StrictCategory(t *testing.T) {
	idx := NewIndex(sampleProducts())
	got, _ := idx.Search(context.Background(), Query{
		Name: "hàn", Category: "Mỏ hàn", StrictCategory: true, PageSize: 8,
	})
	for _, p := range got {
		if p.Category != "Mỏ hàn" {
			t.Fatalf("strict category leaked %q", p.Category)
		}
	}
	if len(got) == 0 {
		t.Fatal("no results")
	}
}

func TestSearch_Pagination(t *testing.T) {
	idx := NewIndex(sampleProducts())
	ctx := context.Background()
	q := Query{Name: "hàn khò vít iphone", PageSize: 2}

	page1, _ := idx.Search(ctx, q)
	q.Offset = 2
	page2, _ := idx.Search(ctx, q)

	if len(page1) != 2 {
		t.Fatalf("page1 len = %d", len(page1))
	}
	for _, a := range page1 {
		for _, b := range page2 {
			if a.ProductCode == b.ProductCode {
				t.Fatalf("product %s repeated across pages", a.ProductCode)
			}
		}
	}

	q.Offset = 100
	empty, _ := idx.Search(ctx, q)
	if len(empty) != 0 {
		t.Fatal("offset past end must return nothing")
	}
}

func TestSearch_Deterministic(t *testing.T) {
	idx := NewIndex(sampleProducts())
	ctx := context.Background()
	q := Query{Name: "hàn", PageSize: 8}
	a, _ := idx.Search(ctx, q)
	b, _ := idx.Search(ctx, q)
	if len(a) != len(b) {
		t.Fatal("result count differs across runs")
	}
	for i := range a {
		if a[i].ProductCode != b[i].ProductCode {
			t.Fatal("result order differs across runs")
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := NewIndex(sampleProducts())
	if got, _ := idx.Search(context.Background(), Query{Name: "   "}); got != nil {
		t.Fatal("blank query must return nil")
	}
}

func TestSearchByImage(t *testing.T) {
	products := sampleProducts()
	products[0].ImageEmbedding = []float32{1, 0, 0}
	products[1].ImageEmbedding = []float32{0.9, 0.1, 0}
	products[2].ImageEmbedding = []float32{0, 1, 0}
	idx := NewIndex(products)

	got, err := idx.SearchByImage(context.Background(), []float32{1, 0, 0}, 2, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches; want 2", len(got))
	}
	if got[0].ProductCode != "K1" {
		t.Errorf("best match = %s; want K1", got[0].ProductCode)
	}

	none, _ := idx.SearchByImage(context.Background(), []float32{0, 0, 1}, 3, 0.5)
	if len(none) != 0 {
		t.Fatal("dissimilar vector must clear no floor")
	}
}

func TestWithMaxDocs(t *testing.T) {
	idx := NewIndex(sampleProducts(), WithMaxDocs(2))
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", idx.Len())
	}
}
