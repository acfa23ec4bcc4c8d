package engine

import "testing"

func TestClassifyConfirmation(t *testing.T) {
	cases := []struct {
		msg  string
		want confirmVerdict
	}{
		{"có", verdictConfirm},
		{"ok chốt đơn", verdictConfirm},
		{"dạ vâng", verdictConfirm},
		{"xác nhận", verdictConfirm},
		{"Ship cho anh nhé", verdictConfirm},
		{"không", verdictCancel},
		{"thôi khỏi", verdictCancel},
		{"huỷ giúp em", verdictCancel},
		{"không lấy nữa", verdictCancel},
		{"để sau đi", verdictCancel},
		{"giá bao nhiêu vậy", verdictOther},
		{"", verdictOther},
		// Long messages are new requests, never yes/no answers.
		{"bên shop có bán thêm loại tai nghe bluetooth nào khác không", verdictOther},
	}
	for _, tc := range cases {
		if got := classifyConfirmation(tc.msg); got != tc.want {
			t.Errorf("classifyConfirmation(%q) = %v; want %v", tc.msg, got, tc.want)
		}
	}
}

func TestWantsMore(t *testing.T) {
	positive := []string{
		"xem thêm", "cho xem thêm đi", "còn nữa không", "còn loại nào khác",
		"Còn Nữa Không?", "xem tiếp", "còn gì nữa không",
	}
	for _, msg := range positive {
		if !wantsMore(msg) {
			t.Errorf("wantsMore(%q) = false", msg)
		}
	}
	negative := []string{"có mỏ hàn không", "giá bao nhiêu", "", "thêm vào đơn 2 cái"}
	for _, msg := range negative {
		if wantsMore(msg) {
			t.Errorf("wantsMore(%q) = true", msg)
		}
	}
}
