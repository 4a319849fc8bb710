// Package tool defines the closed per-stage tool surfaces and the dispatcher
// that executes them against the session. Every operation is a tagged entry
// in an exhaustive switch; there is no reflective dispatch.
package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

const (
	ToolSearchMenu         = "search_menu"
	ToolGetItemDetails     = "get_item_details"
	ToolAddToOrder         = "add_to_order"
	ToolGetCurrentOrder    = "get_current_order"
	ToolRemoveFromOrder    = "remove_from_order"
	ToolModifyOrderItem    = "modify_order_item"
	ToolSetOrderMode       = "set_order_mode"
	ToolSetCustomerName    = "set_customer_name"
	ToolSetPhoneNumber     = "set_phone_number"
	ToolAddPendingItem     = "add_pending_item"
	ToolCheckDistrict      = "check_delivery_district"
	ToolSetDeliveryAddress = "set_delivery_address"
	ToolCalculateTotal     = "calculate_total"
	ToolConfirmOrder       = "confirm_order"
	ToolSetCustomerInfo    = "set_customer_info"
)

// BuildForStage returns the tool surface exposed to inference for a stage.
// A stage can only ever invoke what its surface lists; the dispatcher
// enforces the same allow-list on execution.
func BuildForStage(stage contractx.Stage) []*schema.ToolInfo {
	var names []string
	switch stage {
	case contractx.StageGreeting:
		names = []string{ToolSetOrderMode, ToolSetCustomerName, ToolSetPhoneNumber, ToolAddPendingItem}
	case contractx.StageLocation:
		names = []string{ToolCheckDistrict, ToolSetDeliveryAddress, ToolSetOrderMode}
	case contractx.StageOrdering:
		names = []string{
			ToolSearchMenu, ToolGetItemDetails, ToolAddToOrder, ToolGetCurrentOrder,
			ToolRemoveFromOrder, ToolModifyOrderItem, ToolSetOrderMode,
			ToolSetCustomerName, ToolSetPhoneNumber,
		}
	case contractx.StageCheckout:
		names = []string{ToolCalculateTotal, ToolConfirmOrder, ToolSetCustomerInfo, ToolSetOrderMode, ToolRemoveFromOrder, ToolModifyOrderItem}
	default:
		return nil
	}
	out := make([]*schema.ToolInfo, 0, len(names))
	for _, n := range names {
		out = append(out, toolInfos[n])
	}
	return out
}

// Allowed reports whether a stage's surface includes the tool.
func Allowed(stage contractx.Stage, tool string) bool {
	for _, info := range BuildForStage(stage) {
		if info.Name == tool {
			return true
		}
	}
	return false
}

var toolInfos = map[string]*schema.ToolInfo{
	ToolSearchMenu: {
		Name: ToolSearchMenu,
		Desc: "Search the menu by item name or description. Handles Arabic spelling variants.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Item name or description to search for", Required: true},
		}),
	},
	ToolGetItemDetails: {
		Name: ToolGetItemDetails,
		Desc: "Get full details for one menu item: price, sizes, description, availability.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"item_id": {Type: schema.String, Desc: "Catalog id returned by search_menu", Required: true},
		}),
	},
	ToolAddToOrder: {
		Name: ToolAddToOrder,
		Desc: "Add a menu item to the order. Quantity must be between 1 and 10.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"item_id":  {Type: schema.String, Desc: "Catalog id of the item", Required: true},
			"quantity": {Type: schema.Integer, Desc: "Number of units, 1 to 10", Required: true},
			"size":     {Type: schema.String, Desc: "Size name when the item has size pricing"},
			"notes":    {Type: schema.String, Desc: "Free-text preparation notes"},
		}),
	},
	ToolGetCurrentOrder: {
		Name: ToolGetCurrentOrder,
		Desc: "List the current order lines with quantities, prices, and the subtotal.",
	},
	ToolRemoveFromOrder: {
		Name: ToolRemoveFromOrder,
		Desc: "Remove one line from the order, by 1-based position or by item name.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"index": {Type: schema.Integer, Desc: "1-based position in the order"},
			"name":  {Type: schema.String, Desc: "Item name as shown in the order"},
		}),
	},
	ToolModifyOrderItem: {
		Name: ToolModifyOrderItem,
		Desc: "Change quantity, size, or notes of one order line, by position or name.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"index":    {Type: schema.Integer, Desc: "1-based position in the order"},
			"name":     {Type: schema.String, Desc: "Item name as shown in the order"},
			"quantity": {Type: schema.Integer, Desc: "New quantity, 1 to 10"},
			"size":     {Type: schema.String, Desc: "New size"},
			"notes":    {Type: schema.String, Desc: "New preparation notes"},
		}),
	},
	ToolSetOrderMode: {
		Name: ToolSetOrderMode,
		Desc: "Set whether the order is for delivery or pickup.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"mode": {Type: schema.String, Desc: "Either delivery or pickup", Required: true},
		}),
	},
	ToolSetCustomerName: {
		Name: ToolSetCustomerName,
		Desc: "Record the customer's name. Ignored if a name was already recorded.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"name": {Type: schema.String, Desc: "Customer name", Required: true},
		}),
	},
	ToolSetPhoneNumber: {
		Name: ToolSetPhoneNumber,
		Desc: "Record the customer's phone number. Ignored if already recorded.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"phone": {Type: schema.String, Desc: "Saudi mobile number, e.g. 05xxxxxxxx", Required: true},
		}),
	},
	ToolAddPendingItem: {
		Name: ToolAddPendingItem,
		Desc: "Capture an item the customer asked for before ordering starts; the ordering stage will process it.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"text":     {Type: schema.String, Desc: "The customer's item request verbatim", Required: true},
			"quantity": {Type: schema.Integer, Desc: "Requested quantity if stated"},
		}),
	},
	ToolCheckDistrict: {
		Name: ToolCheckDistrict,
		Desc: "Check whether a district is inside the delivery area; confirms it with fee and ETA on success.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"district": {Type: schema.String, Desc: "District name as the customer said it", Required: true},
		}),
	},
	ToolSetDeliveryAddress: {
		Name: ToolSetDeliveryAddress,
		Desc: "Record the street and building number for a confirmed district.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"street":   {Type: schema.String, Desc: "Street name", Required: true},
			"building": {Type: schema.String, Desc: "Building number", Required: true},
			"notes":    {Type: schema.String, Desc: "Extra directions, apartment, floor"},
		}),
	},
	ToolCalculateTotal: {
		Name: ToolCalculateTotal,
		Desc: "Compute the order total: subtotal plus delivery fee when applicable.",
	},
	ToolConfirmOrder: {
		Name: ToolConfirmOrder,
		Desc: "Finalize the order. Requires a non-empty order, customer name and phone, and a complete address for delivery.",
	},
	ToolSetCustomerInfo: {
		Name: ToolSetCustomerInfo,
		Desc: "Record name and phone together during checkout. Already-recorded values are kept.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"name":  {Type: schema.String, Desc: "Customer name"},
			"phone": {Type: schema.String, Desc: "Saudi mobile number"},
		}),
	},
}
