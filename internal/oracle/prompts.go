package oracle

import (
	"fmt"
	"strings"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Prompt templates for the Gemini backend. The assistant persona addresses
// the customer as "anh/chị" and refers to itself as "em" throughout.

const intentPromptTemplate = `Bạn là một AI phân tích truy vấn của khách hàng cho cửa hàng thiết bị điện tử. Dựa vào lịch sử hội thoại và câu hỏi mới nhất, hãy phân tích và trả về MỘT đối tượng JSON, không thêm chữ nào khác.
QUAN TRỌNG: Khi câu hỏi của khách hàng là một câu trả lời ngắn gọn cho câu hỏi của bot ở lượt trước, hãy kế thừa ý định từ lượt trước đó.

Lịch sử hội thoại gần đây:
%s

Câu hỏi mới nhất của khách hàng: "%s"

Hãy điền vào cấu trúc JSON sau:
{
  "needs_search": <true nếu cần tìm thông tin sản phẩm để trả lời>,
  "is_purchase_intent": <true nếu khách muốn đặt mua sản phẩm>,
  "is_add_to_order_intent": <true nếu khách muốn mua thêm / bổ sung vào đơn>,
  "wants_images": <true nếu khách hỏi về "ảnh", "hình ảnh">,
  "wants_specs": <true nếu khách hỏi về "thông số", "chi tiết", "cấu hình">,
  "wants_human_agent": <true nếu khách muốn gặp nhân viên / người thật>,
  "wants_store_info": <true nếu khách hỏi địa chỉ, giờ mở cửa cửa hàng>,
  "is_negative": <true nếu khách tỏ thái độ tiêu cực, bực bội, chửi bới>,
  "is_bank_transfer": <true nếu khách hỏi về chuyển khoản>,
  "is_warranty_claim": <true nếu khách yêu cầu bảo hành sản phẩm đã mua>,
  "search_params": [
    {"product_name": "<tên chính>", "category": "<danh mục>", "properties": "<model, màu sắc...>", "quantity": <số lượng, mặc định 1>}
  ]
}

Ví dụ:
- Câu hỏi: "shop có bán iphone 15 pro max màu xanh không?"
  JSON: {"needs_search": true, "is_purchase_intent": false, "is_add_to_order_intent": false, "wants_images": false, "wants_specs": false, "wants_human_agent": false, "wants_store_info": false, "is_negative": false, "is_bank_transfer": false, "is_warranty_claim": false, "search_params": [{"product_name": "iphone 15 pro max", "category": "điện thoại", "properties": "màu xanh", "quantity": 1}]}
- Câu hỏi: "cho anh 2 máy khò 8512P với 1 mỏ hàn 60W"
  JSON: {"needs_search": true, "is_purchase_intent": true, "is_add_to_order_intent": false, "wants_images": false, "wants_specs": false, "wants_human_agent": false, "wants_store_info": false, "is_negative": false, "is_bank_transfer": false, "is_warranty_claim": false, "search_params": [{"product_name": "máy khò", "category": "Máy khò", "properties": "8512P", "quantity": 2}, {"product_name": "mỏ hàn", "category": "Mỏ hàn", "properties": "60W", "quantity": 1}]}

JSON của bạn:`

const contactPromptTemplate = `Trích xuất thông tin liên hệ từ tin nhắn của khách hàng. Trả về MỘT đối tượng JSON dạng {"name": "...", "phone": "...", "address": "..."}; để trống trường nào không có.

Tin nhắn: "%s"

JSON của bạn:`

const evaluatePromptTemplate = `Khách hàng muốn mua: "%s"

Danh sách sản phẩm trong kho:
%s

Hãy đánh giá mức độ khớp và trả về MỘT đối tượng JSON:
{"type": "<PERFECT_MATCH nếu có sản phẩm đúng yêu cầu | CLOSE_MATCH nếu chỉ gần giống | NONE nếu không có gì phù hợp>", "index": <số thứ tự sản phẩm khớp nhất, bắt đầu từ 0>, "score": <độ khớp 0..1>}

JSON của bạn:`

const replyPromptTemplate = `Bạn là một trợ lý tư vấn bán hàng cho cửa hàng thiết bị/phụ kiện điện tử.
Hãy sử dụng thông tin dưới đây để trả lời khách hàng thân thiện, tự nhiên và chính xác. Không bịa thêm thông tin không có trong ngữ cảnh.

%s
Câu hỏi của khách hàng: "%s"

Chỉ nói cửa hàng còn bao nhiêu sản phẩm khi khách hỏi về tồn kho.
Nếu sản phẩm có giá 0đ, hãy nói giá là "Liên hệ".
Không tự cung cấp link đặt hàng hay link ảnh khi khách không yêu cầu.
Bạn nên trả lời lễ phép, luôn xưng "em" và gọi khách là "anh/chị".%s%s
Câu trả lời của bạn:`

const replyImagesInstruction = `
Khách muốn xem ảnh: sau câu trả lời, thêm một dòng cuối cùng dạng IMAGES: ["<tên sản phẩm (thuộc tính)>", ...] liệt kê đúng các sản phẩm khách muốn xem ảnh.`

const replyContinuationInstruction = `
Bạn đã chào khách ở các lượt trước, không chào lại nữa.`

func buildIntentPrompt(message string, history []domain.MessagePair) string {
	return fmt.Sprintf(intentPromptTemplate, renderHistory(history), message)
}

func buildContactPrompt(message string) string {
	return fmt.Sprintf(contactPromptTemplate, message)
}

func buildEvaluatePrompt(message string, candidates []domain.Product) string {
	return fmt.Sprintf(evaluatePromptTemplate, message, renderProducts(candidates, true))
}

func buildReplyPrompt(req ReplyRequest) string {
	var ctx strings.Builder
	if len(req.History) > 0 {
		ctx.WriteString("Lịch sử hội thoại gần đây:\n")
		ctx.WriteString(renderHistory(req.History))
		ctx.WriteString("\n")
	}
	if len(req.Products) > 0 {
		ctx.WriteString("Thông tin sản phẩm tìm thấy:\n")
		ctx.WriteString(renderProducts(req.Products, req.IncludeSpecs))
		ctx.WriteString("\n")
	}
	images := ""
	if req.WantsImages {
		images = replyImagesInstruction
	}
	continuation := ""
	if req.Continuation || len(req.History) > 0 {
		continuation = replyContinuationInstruction
	}
	return fmt.Sprintf(replyPromptTemplate, ctx.String(), req.Message, images, continuation)
}

func renderHistory(history []domain.MessagePair) string {
	var b strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&b, "Khách: %s\nBot: %s\n", turn.User, turn.Bot)
	}
	return b.String()
}

func renderProducts(products []domain.Product, includeSpecs bool) string {
	var b strings.Builder
	for i, p := range products {
		fmt.Fprintf(&b, "%d. Tên: %s, Danh mục: %s, Thuộc tính: %s, Thương hiệu: %s, Bảo hành: %s, Tồn kho: %d, Giá: %s, Link đặt hàng: %s",
			i, orNA(p.ProductName), orNA(p.Category), orNA(p.Properties), orNA(p.Trademark),
			orNA(p.Guarantee), p.Inventory, formatPrice(p.LifecarePrice), orNA(p.LinkProduct))
		if includeSpecs {
			fmt.Fprintf(&b, ", Mô tả: %s", orNA(p.Specifications))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" || s == "0" {
		return "N/A"
	}
	return s
}
