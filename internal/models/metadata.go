package models

import (
	"encoding/json"
	"fmt"
)

// Action types carried by system-message metadata. Each value fixes which
// metadata fields are meaningful, so malformed system messages are caught at
// construction rather than at render time.
const (
	ActionRequestTransferIntro = "REQUEST_TRANSFER_INTRO"
	ActionTransferIntroSeller  = "TRANSFER_INTRO_SELLER"
	ActionTicketRequest        = "TICKET_REQUEST"
	ActionPaymentRequest       = "PAYMENT_REQUEST"
	ActionTicketReject         = "TICKET_REJECT"
)

// Visibility targets for system messages.
const (
	TargetBuyer  = "BUYER"
	TargetSeller = "SELLER"
)

// Action codes offered to clients as buttons and accepted back by the
// negotiation dispatch endpoint.
const (
	CodeTransferRequest = "TRANSFER_REQUEST"
	CodeTransferAccept  = "TRANSFER_ACCEPT"
	CodeTransferReject  = "TRANSFER_REJECT"
	CodeStartPayment    = "START_PAYMENT"
)

// MessageAction is one button descriptor rendered by the client.
type MessageAction struct {
	Label      string `json:"label"`
	ActionCode string `json:"actionCode"`
	IsPrimary  bool   `json:"isPrimary"`
}

// Metadata is the structured payload attached to system messages. Known
// action types use the typed fields; a payload decoded with an unknown
// actionType keeps its raw form so it survives a round trip through storage.
type Metadata struct {
	ActionType    string          `json:"actionType"`
	VisibleTarget string          `json:"visibleTarget,omitempty"`
	BuyerID       uint            `json:"buyerId,omitempty"`
	SellerID      uint            `json:"sellerId,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Actions       []MessageAction `json:"actions,omitempty"`

	raw json.RawMessage
}

// IntroBuyerMetadata prompts the buyer to start the transfer.
func IntroBuyerMetadata(buyerID, sellerID uint) *Metadata {
	return &Metadata{
		ActionType:    ActionRequestTransferIntro,
		VisibleTarget: TargetBuyer,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Actions: []MessageAction{
			{Label: "Request transfer", ActionCode: CodeTransferRequest, IsPrimary: true},
		},
	}
}

// IntroSellerMetadata informs the seller that the buyer opened the room.
func IntroSellerMetadata(buyerID, sellerID uint) *Metadata {
	return &Metadata{
		ActionType:    ActionTransferIntroSeller,
		VisibleTarget: TargetSeller,
		BuyerID:       buyerID,
		SellerID:      sellerID,
	}
}

// TransferRequestMetadata offers the seller accept/reject buttons.
func TransferRequestMetadata(sellerID uint) *Metadata {
	return &Metadata{
		ActionType:    ActionTicketRequest,
		VisibleTarget: TargetSeller,
		SellerID:      sellerID,
		Actions: []MessageAction{
			{Label: "Accept transfer", ActionCode: CodeTransferAccept, IsPrimary: true},
			{Label: "Reject transfer", ActionCode: CodeTransferReject, IsPrimary: false},
		},
	}
}

// PaymentRequestMetadata offers the buyer the payment handoff button.
func PaymentRequestMetadata(buyerID uint) *Metadata {
	return &Metadata{
		ActionType:    ActionPaymentRequest,
		VisibleTarget: TargetBuyer,
		BuyerID:       buyerID,
		Actions: []MessageAction{
			{Label: "Start payment", ActionCode: CodeStartPayment, IsPrimary: true},
		},
	}
}

// TicketRejectMetadata informs the buyer of a rejection. No actions: the
// room locks and the negotiation is over.
func TicketRejectMetadata(buyerID uint, reason string) *Metadata {
	return &Metadata{
		ActionType:    ActionTicketReject,
		VisibleTarget: TargetBuyer,
		BuyerID:       buyerID,
		Reason:        reason,
	}
}

// knownActionType reports whether the typed field set applies.
func knownActionType(t string) bool {
	switch t {
	case ActionRequestTransferIntro, ActionTransferIntroSeller,
		ActionTicketRequest, ActionPaymentRequest, ActionTicketReject:
		return true
	}
	return false
}

// Encode serializes metadata to its JSON storage form. Unknown-type payloads
// write back their preserved raw form untouched.
func (m *Metadata) Encode() (string, error) {
	if m == nil {
		return "", nil
	}
	if m.raw != nil {
		return string(m.raw), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("models: encode metadata: %w", err)
	}
	return string(data), nil
}

// DecodeMetadata parses the stored JSON form. An empty string decodes to nil.
// Payloads with an unrecognized actionType are kept raw rather than rejected,
// so newer producers stay readable.
func DecodeMetadata(stored string) (*Metadata, error) {
	if stored == "" {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(stored), &m); err != nil {
		return nil, fmt.Errorf("models: decode metadata: %w", err)
	}
	if !knownActionType(m.ActionType) {
		m.raw = json.RawMessage(stored)
	}
	return &m, nil
}

// Raw returns the preserved storage form for unknown action types, nil for
// known ones.
func (m *Metadata) Raw() json.RawMessage {
	if m == nil {
		return nil
	}
	return m.raw
}

// MarshalJSON emits the preserved raw payload verbatim for unknown action
// types so the client sees exactly what was stored.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	type plain Metadata
	return json.Marshal(plain(m))
}
