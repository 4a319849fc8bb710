package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/albayt/ordering-agent/agent/catalog"
	contractx "github.com/albayt/ordering-agent/agent/contract"
	statex "github.com/albayt/ordering-agent/agent/state"
)

// Gateway executes tool calls against a session. All catalog collaborators
// are read-only; the session is the only thing a tool mutates.
type Gateway struct {
	index    *catalog.Index
	resolver *catalog.Resolver
	coverage *catalog.Coverage
	now      func() time.Time
}

func New(index *catalog.Index, resolver *catalog.Resolver, coverage *catalog.Coverage) *Gateway {
	return &Gateway{index: index, resolver: resolver, coverage: coverage, now: time.Now}
}

// menuView adapts the catalog index to the ledger's menu lookup.
type menuView struct {
	index *catalog.Index
}

func (m menuView) ItemByID(id string) (statex.MenuItem, bool) {
	it, ok := m.index.ItemByID(id)
	if !ok {
		return statex.MenuItem{}, false
	}
	return statex.MenuItem{
		ID:         it.ID,
		Name:       it.Name,
		Available:  it.Available,
		BasePrice:  it.Price,
		SizePrices: it.SizePrices,
	}, true
}

// Execute runs one tool call. Domain failures the model can recover from
// (unknown item, uncovered district, invalid quantity) come back inside the
// ToolResult so inference can rephrase and retry with the user. The returned
// error is reserved for terminal conditions.
func (g *Gateway) Execute(ctx context.Context, s *statex.Session, stage contractx.Stage, req contractx.ToolRequest) (contractx.ToolResult, error) {
	if s.Closed() {
		return contractx.ToolResult{}, fmt.Errorf("execute %s: %w", req.Tool, contractx.ErrSessionClosed)
	}
	if !Allowed(stage, req.Tool) {
		return contractx.ToolResult{
			Tool:  req.Tool,
			Error: fmt.Sprintf("tool=%s is unavailable for stage=%s", req.Tool, stage),
		}, nil
	}

	switch req.Tool {
	case ToolSearchMenu:
		return g.searchMenu(ctx, req)
	case ToolGetItemDetails:
		return g.itemDetails(req)
	case ToolAddToOrder:
		return g.addToOrder(s, req)
	case ToolGetCurrentOrder:
		return g.currentOrder(s, req)
	case ToolRemoveFromOrder:
		return g.removeFromOrder(s, req)
	case ToolModifyOrderItem:
		return g.modifyOrderItem(s, req)
	case ToolSetOrderMode:
		return g.setOrderMode(s, req)
	case ToolSetCustomerName:
		return g.setCustomerName(s, req)
	case ToolSetPhoneNumber:
		return g.setPhoneNumber(s, req)
	case ToolSetCustomerInfo:
		return g.setCustomerInfo(s, req)
	case ToolAddPendingItem:
		return g.addPendingItem(s, req)
	case ToolCheckDistrict:
		return g.checkDistrict(s, req)
	case ToolSetDeliveryAddress:
		return g.setDeliveryAddress(s, req)
	case ToolCalculateTotal:
		return g.calculateTotal(s, req)
	case ToolConfirmOrder:
		return g.confirmOrder(s, req)
	default:
		return contractx.ToolResult{
			Tool:  req.Tool,
			Error: fmt.Sprintf("unknown tool=%s", req.Tool),
		}, nil
	}
}

type searchItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

type searchOutput struct {
	Found        bool         `json:"found"`
	Match        string       `json:"match,omitempty"`
	NeedsConfirm bool         `json:"needs_confirm"`
	Items        []searchItem `json:"items,omitempty"`
	Message      string       `json:"message,omitempty"`
}

func (g *Gateway) searchMenu(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	query, err := stringArg(req.Args, "query", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	res, err := g.resolver.Search(ctx, query)
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("search_menu: %w", err)
	}
	if !res.Found {
		return contractx.ToolResult{Tool: req.Tool, Result: searchOutput{
			Found:   false,
			Message: fmt.Sprintf("لم أجد %q في القائمة. الأقسام المتوفرة: %s.", query, strings.Join(g.index.Categories(), "، ")),
		}}, nil
	}
	out := searchOutput{Found: true, Match: string(res.Kind), NeedsConfirm: res.NeedsConfirm}
	for _, sc := range res.Items {
		out.Items = append(out.Items, searchItem{
			ID:       sc.Item.ID,
			Name:     sc.Item.Name,
			Price:    sc.Item.Price,
			Category: sc.Item.Category,
			Score:    sc.Score,
		})
	}
	switch {
	case res.Weak():
		out.Message = "التطابق ضعيف، اعرض هذه الاقتراحات على العميل ولا تضف شيئاً قبل موافقته."
	case res.NeedsConfirm:
		out.Message = "أكثر من صنف مطابق، اسأل العميل أيها يقصد قبل الإضافة."
	}
	return contractx.ToolResult{Tool: req.Tool, Result: out}, nil
}

func (g *Gateway) itemDetails(req contractx.ToolRequest) (contractx.ToolResult, error) {
	id, err := stringArg(req.Args, "item_id", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	it, ok := g.index.ItemByID(id)
	if !ok {
		return contractx.ToolResult{Tool: req.Tool, Error: contractx.ErrItemNotFound.Error()}, nil
	}
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"id":          it.ID,
		"name":        it.Name,
		"price":       it.Price,
		"category":    it.Category,
		"description": it.Description,
		"available":   it.Available,
		"sizes":       it.SizePrices,
	}}, nil
}

func (g *Gateway) addToOrder(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	id, err := stringArg(req.Args, "item_id", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	qty, err := intArg(req.Args, "quantity", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	size, _ := stringArg(req.Args, "size", false)
	notes, _ := stringArg(req.Args, "notes", false)

	line, err := s.Ledger.Add(menuView{g.index}, id, qty, size, notes)
	if err != nil {
		return domainError(req.Tool, err), nil
	}
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"added":    line.Name,
		"quantity": line.Quantity,
		"total":    line.Total(),
		"subtotal": s.Ledger.Subtotal(),
	}}, nil
}

func (g *Gateway) currentOrder(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	if s.Ledger.Empty() {
		return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
			"empty":   true,
			"message": "الطلب فارغ حالياً.",
		}}, nil
	}
	type lineOut struct {
		Index    int     `json:"index"`
		Name     string  `json:"name"`
		Quantity int     `json:"quantity"`
		Size     string  `json:"size,omitempty"`
		Notes    string  `json:"notes,omitempty"`
		Total    float64 `json:"total"`
	}
	lines := make([]lineOut, 0, len(s.Ledger.Lines()))
	for i, l := range s.Ledger.Lines() {
		lines = append(lines, lineOut{
			Index: i + 1, Name: l.Name, Quantity: l.Quantity,
			Size: l.Size, Notes: l.Notes, Total: l.Total(),
		})
	}
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"empty":    false,
		"lines":    lines,
		"subtotal": s.Ledger.Subtotal(),
	}}, nil
}

func (g *Gateway) removeFromOrder(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	sel, err := selector(req.Args)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	removed, err := s.Ledger.Remove(sel)
	if err != nil {
		return domainError(req.Tool, err), nil
	}
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"removed":  removed.Name,
		"subtotal": s.Ledger.Subtotal(),
	}}, nil
}

func (g *Gateway) modifyOrderItem(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	sel, err := selector(req.Args)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	var patch statex.LinePatch
	if _, ok := req.Args["quantity"]; ok {
		q, err := intArg(req.Args, "quantity", true)
		if err != nil {
			return argError(req.Tool, err), nil
		}
		patch.Quantity = &q
	}
	if _, ok := req.Args["size"]; ok {
		v, _ := stringArg(req.Args, "size", false)
		patch.Size = &v
	}
	if _, ok := req.Args["notes"]; ok {
		v, _ := stringArg(req.Args, "notes", false)
		patch.Notes = &v
	}
	line, err := s.Ledger.Modify(menuView{g.index}, sel, patch)
	if err != nil {
		return domainError(req.Tool, err), nil
	}
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"modified": line.Name,
		"quantity": line.Quantity,
		"total":    line.Total(),
		"subtotal": s.Ledger.Subtotal(),
	}}, nil
}

func (g *Gateway) setOrderMode(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	raw, err := stringArg(req.Args, "mode", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	mode, ok := parseMode(raw)
	if !ok {
		return argError(req.Tool, fmt.Errorf("mode must be delivery or pickup, got %q", raw)), nil
	}
	s.SetMode(mode)
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{"mode": string(mode)}}, nil
}

func (g *Gateway) setCustomerName(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	name, err := stringArg(req.Args, "name", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	if s.CustomerName != "" {
		return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
			"name":        s.CustomerName,
			"already_set": true,
		}}, nil
	}
	s.CustomerName = strings.TrimSpace(name)
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{"name": s.CustomerName}}, nil
}

var phonePattern = regexp.MustCompile(`^05\d{8}$`)

func normalizePhone(raw string) (string, bool) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "966") {
		p = "0" + strings.TrimPrefix(p, "966")
	}
	return p, phonePattern.MatchString(p)
}

func (g *Gateway) setPhoneNumber(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	raw, err := stringArg(req.Args, "phone", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	if s.Phone != "" {
		return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
			"phone":       s.Phone,
			"already_set": true,
		}}, nil
	}
	phone, ok := normalizePhone(raw)
	if !ok {
		return contractx.ToolResult{Tool: req.Tool, Error: "رقم الجوال غير صحيح. الصيغة المطلوبة 05xxxxxxxx."}, nil
	}
	s.Phone = phone
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{"phone": phone}}, nil
}

func (g *Gateway) setCustomerInfo(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	name, _ := stringArg(req.Args, "name", false)
	raw, _ := stringArg(req.Args, "phone", false)

	// Validate everything before touching the session.
	phone := ""
	if raw != "" && s.Phone == "" {
		normalized, ok := normalizePhone(raw)
		if !ok {
			return contractx.ToolResult{Tool: req.Tool, Error: "رقم الجوال غير صحيح. الصيغة المطلوبة 05xxxxxxxx."}, nil
		}
		phone = normalized
	}

	if name != "" && s.CustomerName == "" {
		s.CustomerName = strings.TrimSpace(name)
	}
	if phone != "" {
		s.Phone = phone
	}
	out := map[string]any{"name": s.CustomerName, "phone": s.Phone}
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: out}, nil
}

func (g *Gateway) addPendingItem(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	text, err := stringArg(req.Args, "text", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	qty, _ := intArg(req.Args, "quantity", false)
	if qty <= 0 {
		qty = 1
	}
	s.AddPending(text, qty)
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"pending": text,
		"message": "تم حفظ الطلب، سيتم معالجته في مرحلة الطلب.",
	}}, nil
}

func (g *Gateway) checkDistrict(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	district, err := stringArg(req.Args, "district", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	zone, err := g.coverage.Match(district)
	if err != nil {
		if errors.Is(err, contractx.ErrDistrictNotCovered) {
			return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
				"covered":           false,
				"message":           fmt.Sprintf("عذراً، التوصيل غير متوفر لـ %q حالياً. يمكنك الاستلام من الفرع إذا يناسبك.", district),
				"suggestions":       g.coverage.Suggestions(district, 3),
				"covered_districts": g.coverage.Districts(),
			}}, nil
		}
		return contractx.ToolResult{}, fmt.Errorf("check_delivery_district: %w", err)
	}
	s.ConfirmLocation(zone.District, zone.Fee, zone.ETA)
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"covered":  true,
		"district": zone.District,
		"fee":      zone.Fee,
		"eta":      zone.ETA,
		"message":  "تم تأكيد الحي. خذ الآن اسم الشارع ورقم المبنى.",
	}}, nil
}

func (g *Gateway) setDeliveryAddress(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	street, err := stringArg(req.Args, "street", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	building, err := stringArg(req.Args, "building", true)
	if err != nil {
		return argError(req.Tool, err), nil
	}
	notes, _ := stringArg(req.Args, "notes", false)
	if !s.LocationConfirmed {
		return contractx.ToolResult{Tool: req.Tool, Error: "تحقق من الحي أولاً عبر check_delivery_district قبل تسجيل العنوان."}, nil
	}
	s.SetAddress(street, building, notes)
	s.Touch(g.now())
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"address":  s.FullAddress(),
		"complete": s.AddressComplete,
	}}, nil
}

func (g *Gateway) calculateTotal(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	subtotal := s.Ledger.Subtotal()
	fee := 0.0
	if s.Mode == contractx.ModeDelivery {
		fee = s.DeliveryFee
	}
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"subtotal":     subtotal,
		"delivery_fee": fee,
		"total":        subtotal + fee,
	}}, nil
}

func (g *Gateway) confirmOrder(s *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	if s.Ledger.Empty() {
		return domainError(req.Tool, contractx.ErrEmptyOrder), nil
	}
	if s.CustomerName == "" || s.Phone == "" {
		return contractx.ToolResult{Tool: req.Tool, Error: "لا يمكن تأكيد الطلب بدون اسم العميل ورقم الجوال."}, nil
	}
	if s.Mode == contractx.ModeDelivery && (!s.LocationConfirmed || !s.AddressComplete) {
		return domainError(req.Tool, contractx.ErrAddressIncomplete), nil
	}

	now := g.now()
	orderID := newOrderID(now)
	s.Touch(now)
	s.Complete(orderID)

	subtotal := s.Ledger.Subtotal()
	fee := 0.0
	if s.Mode == contractx.ModeDelivery {
		fee = s.DeliveryFee
	}
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{
		"order_id": orderID,
		"total":    subtotal + fee,
		"eta":      s.EstimatedTime,
		"message":  fmt.Sprintf("تم تأكيد الطلب. رقم طلبك %s.", orderID),
	}}, nil
}

func newOrderID(now time.Time) string {
	id := uuid.New()
	suffix := (uint16(id[0])<<8 | uint16(id[1])) % 10000
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), suffix)
}

func parseMode(raw string) (contractx.OrderMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivery", "توصيل":
		return contractx.ModeDelivery, true
	case "pickup", "استلام":
		return contractx.ModePickup, true
	default:
		return "", false
	}
}

func selector(args map[string]any) (statex.Selector, error) {
	var sel statex.Selector
	if _, ok := args["index"]; ok {
		idx, err := intArg(args, "index", true)
		if err != nil {
			return sel, err
		}
		sel.Index = idx
	}
	sel.Name, _ = stringArg(args, "name", false)
	if sel.Index == 0 && sel.Name == "" {
		return sel, errors.New("either index or name is required")
	}
	return sel, nil
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("%s is required", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string, required bool) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return 0, fmt.Errorf("%s is required", key)
		}
		return 0, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func argError(tool string, err error) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Error: err.Error()}
}

func domainError(tool string, err error) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Error: err.Error()}
}
