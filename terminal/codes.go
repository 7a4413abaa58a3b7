package terminal

// Trade server return codes, as reported in TradeResult.Retcode.
const (
	RetcodeRequote           uint32 = 10004
	RetcodeReject            uint32 = 10006
	RetcodeCancel            uint32 = 10007
	RetcodePlaced            uint32 = 10008
	RetcodeDone              uint32 = 10009
	RetcodeDonePartial       uint32 = 10010
	RetcodeError             uint32 = 10011
	RetcodeTimeout           uint32 = 10012
	RetcodeInvalid           uint32 = 10013
	RetcodeInvalidVolume     uint32 = 10014
	RetcodeInvalidPrice      uint32 = 10015
	RetcodeInvalidStops      uint32 = 10016
	RetcodeTradeDisabled     uint32 = 10017
	RetcodeMarketClosed      uint32 = 10018
	RetcodeNoMoney           uint32 = 10019
	RetcodePriceChanged      uint32 = 10020
	RetcodePriceOff          uint32 = 10021
	RetcodeInvalidExpiration uint32 = 10022
	RetcodeOrderChanged      uint32 = 10023
	RetcodeTooManyRequests   uint32 = 10024
	RetcodeNoChanges         uint32 = 10025
	RetcodeServerDisablesAT  uint32 = 10026
	RetcodeClientDisablesAT  uint32 = 10027
	RetcodeLocked            uint32 = 10028
	RetcodeFrozen            uint32 = 10029
	RetcodeInvalidFill       uint32 = 10030
	RetcodeConnection        uint32 = 10031
	RetcodeOnlyReal          uint32 = 10032
	RetcodeLimitOrders       uint32 = 10033
	RetcodeLimitVolume       uint32 = 10034
)

// Terminal runtime error codes, as reported by LastError.
const (
	ErrOK                  = 1
	ErrFail                = -1
	ErrInvalidParams       = -2
	ErrNoMemory            = -3
	ErrNotFound            = -4
	ErrInvalidVersion      = -5
	ErrAuthFailed          = -6
	ErrUnsupported         = -7
	ErrAutoTradingDisabled = -8
	ErrInternalFail        = -10000
	ErrIPCSendFailed       = -10001 // terminal process not running
	ErrIPCRecvFailed       = -10002
	ErrIPCInitFailed       = -10003
	ErrIPCNoConnection     = -10004
	ErrIPCTimeout          = -10005
)

// retryableRetcodes enumerates the transient trade retcodes. Anything not
// listed here is a hard rejection and must never be retried: a blanket
// retry-on-failure policy risks duplicate fills.
var retryableRetcodes = map[uint32]bool{
	RetcodeRequote:         true,
	RetcodeTimeout:         true,
	RetcodePriceChanged:    true,
	RetcodePriceOff:        true,
	RetcodeTooManyRequests: true,
	RetcodeConnection:      true,
}

// RetryableRetcode reports whether a trade retcode signals a transient
// condition worth another submission attempt.
func RetryableRetcode(code uint32) bool { return retryableRetcodes[code] }

// Succeeded reports whether a retcode means the request was accepted.
func Succeeded(code uint32) bool {
	return code == RetcodeDone || code == RetcodeDonePartial || code == RetcodePlaced
}
