// Package message defines the message pickup protocol envelopes and the
// static table that maps type URIs to message kinds.
//
// Two URI families are recognised and treated as aliases of each other:
//
//	did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/messagepickup/1.0/<name>
//	https://didcomm.org/messagepickup/0.1/<name>
//
// Replies are produced in the family of the request they answer.
package message

import "strings"

// Protocol URIs of the two supported families.
const (
	LegacyProtocolURI  = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/messagepickup/1.0"
	DIDCommProtocolURI = "https://didcomm.org/messagepickup/0.1"
)

// Legacy family type URIs.
const (
	TypeStatusRequest        = LegacyProtocolURI + "/status_request"
	TypeStatusResponse       = LegacyProtocolURI + "/status_response"
	TypeBatchPickupRequest   = LegacyProtocolURI + "/batch_pickup_request"
	TypeBatchPickupResponse  = LegacyProtocolURI + "/batch_pickup_response"
	TypeListPickupRequest    = LegacyProtocolURI + "/list_pickup_request"
	TypeListPickupResponse   = LegacyProtocolURI + "/list_pickup_response"
	TypeDeletePickupRequest  = LegacyProtocolURI + "/delete_pickup_request"
	TypeDeletePickupResponse = LegacyProtocolURI + "/delete_pickup_response"
)

// DIDComm family type URIs.
const (
	DIDCommTypeStatusRequest        = DIDCommProtocolURI + "/status_request"
	DIDCommTypeStatusResponse       = DIDCommProtocolURI + "/status_response"
	DIDCommTypeBatchPickupRequest   = DIDCommProtocolURI + "/batch_pickup_request"
	DIDCommTypeBatchPickupResponse  = DIDCommProtocolURI + "/batch_pickup_response"
	DIDCommTypeListPickupRequest    = DIDCommProtocolURI + "/list_pickup_request"
	DIDCommTypeListPickupResponse   = DIDCommProtocolURI + "/list_pickup_response"
	DIDCommTypeDeletePickupRequest  = DIDCommProtocolURI + "/delete_pickup_request"
	DIDCommTypeDeletePickupResponse = DIDCommProtocolURI + "/delete_pickup_response"
)

// Kind identifies a pickup protocol operation independently of the URI family.
type Kind int

const (
	KindUnknown Kind = iota
	KindStatusRequest
	KindStatusResponse
	KindBatchPickupRequest
	KindBatchPickupResponse
	KindListPickupRequest
	KindListPickupResponse
	KindDeletePickupRequest
	KindDeletePickupResponse
)

var kindNames = map[Kind]string{
	KindStatusRequest:        "status_request",
	KindStatusResponse:       "status_response",
	KindBatchPickupRequest:   "batch_pickup_request",
	KindBatchPickupResponse:  "batch_pickup_response",
	KindListPickupRequest:    "list_pickup_request",
	KindListPickupResponse:   "list_pickup_response",
	KindDeletePickupRequest:  "delete_pickup_request",
	KindDeletePickupResponse: "delete_pickup_response",
}

// String returns the protocol name of the kind, e.g. "status_request".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsRequest reports whether k is a request that expects a reply.
func (k Kind) IsRequest() bool {
	switch k {
	case KindStatusRequest, KindBatchPickupRequest, KindListPickupRequest, KindDeletePickupRequest:
		return true
	}
	return false
}

// typeTable maps every recognised type URI to its kind.
var typeTable = map[string]Kind{
	TypeStatusRequest:        KindStatusRequest,
	TypeStatusResponse:       KindStatusResponse,
	TypeBatchPickupRequest:   KindBatchPickupRequest,
	TypeBatchPickupResponse:  KindBatchPickupResponse,
	TypeListPickupRequest:    KindListPickupRequest,
	TypeListPickupResponse:   KindListPickupResponse,
	TypeDeletePickupRequest:  KindDeletePickupRequest,
	TypeDeletePickupResponse: KindDeletePickupResponse,

	DIDCommTypeStatusRequest:        KindStatusRequest,
	DIDCommTypeStatusResponse:       KindStatusResponse,
	DIDCommTypeBatchPickupRequest:   KindBatchPickupRequest,
	DIDCommTypeBatchPickupResponse:  KindBatchPickupResponse,
	DIDCommTypeListPickupRequest:    KindListPickupRequest,
	DIDCommTypeListPickupResponse:   KindListPickupResponse,
	DIDCommTypeDeletePickupRequest:  KindDeletePickupRequest,
	DIDCommTypeDeletePickupResponse: KindDeletePickupResponse,
}

// KindOf resolves a type URI to its kind. Unrecognised URIs yield KindUnknown.
func KindOf(typeURI string) Kind {
	return typeTable[typeURI]
}

// Family selects which protocol URI prefix outbound messages carry.
type Family int

const (
	// FamilyLegacy uses the did:sov prefix.
	FamilyLegacy Family = iota
	// FamilyDIDComm uses the https://didcomm.org prefix.
	FamilyDIDComm
)

// FamilyOf reports the family of a type URI. Unrecognised URIs are legacy.
func FamilyOf(typeURI string) Family {
	if strings.HasPrefix(typeURI, DIDCommProtocolURI+"/") {
		return FamilyDIDComm
	}
	return FamilyLegacy
}

// ParseFamily maps a configuration value ("legacy" or "didcomm") to a Family.
func ParseFamily(s string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return FamilyLegacy, true
	case "didcomm":
		return FamilyDIDComm, true
	}
	return FamilyLegacy, false
}

// Type returns the type URI of kind k in family f.
func (f Family) Type(k Kind) string {
	name, ok := kindNames[k]
	if !ok {
		return ""
	}
	if f == FamilyDIDComm {
		return DIDCommProtocolURI + "/" + name
	}
	return LegacyProtocolURI + "/" + name
}

// String returns "legacy" or "didcomm".
func (f Family) String() string {
	if f == FamilyDIDComm {
		return "didcomm"
	}
	return "legacy"
}
