package engine

import (
	"fmt"
	"strings"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Fixed reply texts. The bot speaks Vietnamese, refers to itself as "em"
// and addresses the customer as "anh/chị".
const (
	replyGreeting = "Dạ, em có thể giúp gì cho anh/chị ạ?"

	replyPleaseWait = "Dạ, anh/chị vui lòng chờ trong giây lát, nhân viên bên em sẽ hỗ trợ ngay ạ."

	replyHandoffApology = "Dạ, em xin lỗi vì trải nghiệm chưa tốt ạ. Em đã chuyển cuộc trò chuyện cho nhân viên hỗ trợ, anh/chị vui lòng chờ trong giây lát ạ."

	replyExhausted = "Dạ, hết rồi ạ. Bên em chỉ còn những sản phẩm trên thôi ạ."

	replyImageNoMatch = "Dạ, em chưa nhận diện được sản phẩm trong ảnh ạ. Anh/chị mô tả giúp em tên sản phẩm bằng chữ để em tìm chính xác hơn nha."

	replyImagesPrefix = "Dạ đây là hình ảnh sản phẩm em gửi anh/chị tham khảo ạ:"

	replyCancelAck = "Dạ vâng ạ. Nếu anh/chị cần tư vấn thêm gì cứ nhắn cho em nha."

	replyAskAddition = "Dạ, anh/chị muốn mua thêm sản phẩm nào ạ? Anh/chị cho em xin tên sản phẩm nha."

	replyNotCarrying = "Dạ, em xin lỗi, cửa hàng em chưa kinh doanh sản phẩm này ạ."
)

func (e *Engine) storeInfoReply() string {
	return fmt.Sprintf(
		"Dạ, cửa hàng em ở %s, mở cửa %s hằng ngày ạ. Anh/chị ghé trực tiếp hoặc nhắn em hỗ trợ đặt hàng online đều được ạ.",
		e.cfg.StoreAddress, e.cfg.StoreHours)
}

func (e *Engine) askContactReply(c domain.CustomerInfo) string {
	return fmt.Sprintf(
		"Dạ, anh/chị vui lòng cho em xin %s để em lên đơn ạ. Hoặc anh/chị có thể ghé cửa hàng tại %s (mở cửa %s) để mua trực tiếp ạ.",
		strings.Join(c.Missing(), ", "), e.cfg.StoreAddress, e.cfg.StoreHours)
}

func finalizeReply(rec domain.CustomerRecord) string {
	var b strings.Builder
	b.WriteString("Dạ, em đã lên đơn thành công cho anh/chị ạ:\n")
	for _, l := range rec.Items {
		fmt.Fprintf(&b, "- %s x %d", l.FullName(), l.Quantity)
		if l.Matched != nil && l.Matched.LifecarePrice > 0 {
			fmt.Fprintf(&b, ", giá %s", domain.FormatPrice(l.Matched.LifecarePrice))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Người nhận: %s, %s, %s.\n", rec.Name, rec.Phone, rec.Address)
	b.WriteString("Nhân viên bên em sẽ liên hệ xác nhận đơn trong ít phút nữa ạ. Em cảm ơn anh/chị nhiều ạ!")
	return b.String()
}

// batchReply renders the single reply for one purchase batch: confirmed
// lines listed together, failed lines grouped by reason, plus the final
// confirmation question when the whole batch resolved.
func (e *Engine) batchReply(lines []domain.OrderLine, allConfirmed bool) string {
	var confirmed, outOfStock, insufficient, suggested, notFound []domain.OrderLine
	for _, l := range lines {
		switch {
		case l.Status == domain.LineConfirmed:
			confirmed = append(confirmed, l)
		case l.Suggestion != nil:
			suggested = append(suggested, l)
		case l.Reason == domain.FailOutOfStock:
			outOfStock = append(outOfStock, l)
		case l.Reason == domain.FailInsufficientStock:
			insufficient = append(insufficient, l)
		default:
			notFound = append(notFound, l)
		}
	}

	var parts []string
	if len(confirmed) > 0 {
		var b strings.Builder
		b.WriteString("Dạ, bên em có sẵn:\n")
		for _, l := range confirmed {
			fmt.Fprintf(&b, "- %s x %d", l.FullName(), l.Quantity)
			if l.Matched != nil {
				if l.Matched.LifecarePrice > 0 {
					fmt.Fprintf(&b, ", giá %s", domain.FormatPrice(l.Matched.LifecarePrice))
				} else {
					b.WriteString(", giá Liên hệ")
				}
			}
			b.WriteString("\n")
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	if len(outOfStock) > 0 {
		parts = append(parts, fmt.Sprintf("Dạ, %s hiện bên em đã hết hàng ạ.", joinNames(outOfStock)))
	}
	for _, l := range insufficient {
		stock := 0
		if l.Matched != nil {
			stock = l.Matched.Inventory
		}
		parts = append(parts, fmt.Sprintf("Dạ, %s bên em chỉ còn %d sản phẩm, chưa đủ số lượng %d anh/chị cần ạ.",
			l.FullName(), stock, l.Quantity))
	}
	for _, l := range suggested {
		parts = append(parts, fmt.Sprintf("Dạ, bên em không có đúng %s, nhưng có %s gần giống, anh/chị xem thử ạ.",
			l.FullName(), l.Suggestion.FullName()))
	}
	if len(notFound) > 0 {
		parts = append(parts, fmt.Sprintf("Dạ, em không tìm thấy %s bên em ạ. Anh/chị kiểm tra lại tên sản phẩm giúp em nha.",
			joinNames(notFound)))
	}

	if allConfirmed {
		parts = append(parts, "Anh/chị xác nhận đặt đơn này để em lên đơn luôn nhé ạ?")
	} else if len(confirmed) > 0 {
		parts = append(parts, "Anh/chị điều chỉnh giúp em các sản phẩm chưa đặt được rồi nhắn lại để em lên đơn chung nha.")
	}
	return strings.Join(parts, "\n")
}

func joinNames(lines []domain.OrderLine) string {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.FullName())
	}
	return strings.Join(names, ", ")
}
