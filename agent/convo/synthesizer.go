// Package convo assembles the per-turn input handed to inference: the state
// block snapshot, handoff summaries on stage transitions, and token-budgeted
// history truncation.
package convo

import (
	"fmt"
	"strings"

	contractx "github.com/albayt/ordering-agent/agent/contract"
	statex "github.com/albayt/ordering-agent/agent/state"
)

const notSet = "غير محدد"

// StateBlock renders a deterministic snapshot of the session for the active
// stage. Regenerated every turn and prepended to the input, so a stage is
// never dependent on how the conversation reached it.
func StateBlock(s *statex.Session) string {
	var b strings.Builder
	b.WriteString("<SESSION_STATE>\n")

	writeField(&b, "اسم العميل", s.CustomerName)
	writeField(&b, "رقم الجوال", s.Phone)

	if s.Mode == contractx.ModePickup {
		b.WriteString("نوع الطلب: استلام\n")
	} else {
		b.WriteString("نوع الطلب: توصيل\n")
	}

	if s.Mode == contractx.ModeDelivery {
		if s.LocationConfirmed {
			fmt.Fprintf(&b, "الحي: %s ✓\n", s.District)
			writeField(&b, "الشارع", s.Street)
			writeField(&b, "رقم المبنى", s.Building)
			if s.AddressNotes != "" {
				fmt.Fprintf(&b, "معلومات إضافية: %s\n", s.AddressNotes)
			}
			if s.AddressComplete {
				b.WriteString("العنوان مكتمل: نعم ✓\n")
			} else {
				b.WriteString("العنوان مكتمل: لا (مطلوب الشارع ورقم المبنى)\n")
			}
			fmt.Fprintf(&b, "رسوم التوصيل: %s ريال\n", formatPrice(s.DeliveryFee))
			fmt.Fprintf(&b, "الوقت المتوقع: %s\n", s.EstimatedTime)
		} else {
			b.WriteString("الموقع: غير محدد بعد\n")
		}
	}

	if s.Ledger.Empty() {
		b.WriteString("الطلب الحالي: فارغ\n")
	} else {
		b.WriteString("الطلب الحالي:\n")
		for _, line := range s.Ledger.Lines() {
			size := ""
			if line.Size != "" {
				size = " " + line.Size
			}
			fmt.Fprintf(&b, "  • %d %s%s - %s ريال\n", line.Quantity, line.Name, size, formatPrice(line.Total()))
		}
		fmt.Fprintf(&b, "المجموع الفرعي: %s ريال\n", formatPrice(s.Ledger.Subtotal()))
	}

	if len(s.Pending) > 0 {
		texts := make([]string, len(s.Pending))
		for i, p := range s.Pending {
			texts[i] = p.Text
		}
		fmt.Fprintf(&b, "طلب معلق من العميل: %q\n", strings.Join(texts, "، "))
		b.WriteString("→ يجب معالجة هذا الطلب أولاً\n")
	}

	if len(s.Constraints) > 0 {
		b.WriteString("قيود مهمة:\n")
		for _, c := range s.Constraints {
			fmt.Fprintf(&b, "  ⚠️ %s\n", c)
		}
	}

	b.WriteString("</SESSION_STATE>")
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		fmt.Fprintf(b, "%s: %s\n", label, notSet)
	} else {
		fmt.Fprintf(b, "%s: %s ✓\n", label, value)
	}
}

func formatPrice(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// Directive returns the one-line task statement handed to a stage on
// takeover. It tells the incoming stage what to do, never how the previous
// stage reasoned.
func Directive(target contractx.Stage, s *statex.Session) string {
	switch target {
	case contractx.StageLocation:
		return "مهمتك: تحقق من موقع التوصيل وخذ العنوان الكامل. العميل يريد توصيل."
	case contractx.StageOrdering:
		if len(s.Pending) > 0 {
			texts := make([]string, len(s.Pending))
			for i, p := range s.Pending {
				texts[i] = p.Text
			}
			return fmt.Sprintf("مهمتك: العميل طلب سابقاً %q. ابحث عن هذه الأصناف وأضفها للطلب ثم ساعده في الباقي.", strings.Join(texts, "، "))
		}
		return "مهمتك: ساعد العميل في طلبه."
	case contractx.StageCheckout:
		return "مهمتك: اعرض ملخص الطلب وأكده مع العميل."
	case contractx.StageGreeting:
		return "مهمتك: رحب بالعميل واعرف اسمه ونوع الطلب."
	default:
		return ""
	}
}

// HandoffSummary replaces the outgoing stage's conversation history on a
// transition. The incoming stage receives only the fresh state block, the
// directive captured at transition time, and the user's latest utterance.
// The directive is passed in rather than recomputed because transition-time
// state it folded in (pending order hints) may already be consumed.
func HandoffSummary(s *statex.Session, directive, lastUserText string) string {
	parts := []string{StateBlock(s), directive}
	if lastUserText != "" {
		parts = append(parts, "العميل: "+lastUserText)
	}
	return strings.Join(parts, "\n\n")
}
