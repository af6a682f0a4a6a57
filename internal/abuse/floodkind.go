// Package abuse implements the hub's flood control, clone detection, and
// temporary-ban bookkeeping.
package abuse

// Kind enumerates the per-command flood buckets tracked on a connection.
type Kind int

const (
	KindConnectToMe Kind = iota
	KindRevConnectToMe
	KindSR
	KindSearch
	KindMyINFO
	KindExtJSON
	KindNickList
	KindTo
	KindChat
	KindGetINFO
	KindMCTo
	KindIN
	KindPing
	KindUnknown
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindConnectToMe:
		return "ConnectToMe"
	case KindRevConnectToMe:
		return "RevConnectToMe"
	case KindSR:
		return "SR"
	case KindSearch:
		return "Search"
	case KindMyINFO:
		return "MyINFO"
	case KindExtJSON:
		return "ExtJSON"
	case KindNickList:
		return "NickList"
	case KindTo:
		return "To"
	case KindChat:
		return "Chat"
	case KindGetINFO:
		return "GetINFO"
	case KindMCTo:
		return "MCTo"
	case KindIN:
		return "IN"
	case KindPing:
		return "Ping"
	default:
		return "Unknown"
	}
}

// BanType mirrors original_source's eBT_* temporary-ban reasons.
type BanType int

const (
	BanPassword BanType = iota
	BanReconnect
	BanFlood
	BanClone
)

func (b BanType) String() string {
	switch b {
	case BanPassword:
		return "BadPassword"
	case BanReconnect:
		return "Reconnect"
	case BanFlood:
		return "Flood"
	case BanClone:
		return "Clone"
	default:
		return "Unknown"
	}
}
