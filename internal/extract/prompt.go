package extract

import "fmt"

// SystemPrompt is the fixed system turn sent with every extraction.
const SystemPrompt = "Bạn là một trợ lý hữu ích chuyên trích xuất và định dạng thông tin về địa điểm và sự kiện từ các đoạn hội thoại. Chỉ trả lời bằng định dạng markdown."

const promptTemplate = `Phân tích đoạn hội thoại sau và trích xuất thông tin về địa điểm hoặc sự kiện được nhắc đến kèm theo từ "%s".
Định dạng thông tin theo cấu trúc ghi chú sau:

[Tên Địa Điểm/Sự Kiện]
	•	Loại: [Nhà hàng/Quán cafe/Cửa hàng/Sự kiện/v.v.]
	•	Địa điểm: [Nếu có nhắc đến]
	•	Thời gian: [Nếu có nhắc đến]
	•	Ghi chú: [Bất kỳ chi tiết bổ sung, gợi ý, hoặc điểm quan trọng nào]
	•	Ngữ cảnh: [Tóm tắt ngắn gọn lý do tại sao được ghi sổ]

Hội thoại:
%s

Vui lòng tập trung vào việc trích xuất thông tin cụ thể về địa điểm hoặc sự kiện, và định dạng thông tin bằng markdown rõ ràng.
Luôn luôn trả lời bằng tiếng Việt.`

// Prompt builds the user turn for one conversation. conversation is the
// transcript as "sender: content" lines.
func Prompt(trigger, conversation string) string {
	return fmt.Sprintf(promptTemplate, trigger, conversation)
}

// Connection check used by Ping.
const (
	pingSystem = "Bạn là trợ lý ảo tiếng Việt hữu ích."
	pingPrompt = "Bạn có thể làm gì?"
)
