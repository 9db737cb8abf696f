// Package models holds the wire/storage representations exchanged between
// the contract engine, its HTTP API, and its PostgreSQL store. Cryptographic
// types (keys, trie structures) stay in internal/contractinfo; this package
// only carries the hex/JSON-friendly projections of them.
package models

// Outpoint identifies a transaction output being spent.
type Outpoint struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// Utxo is a wallet-owned spendable output considered for contract funding.
type Utxo struct {
	Txid          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Address       string  `json:"address"`
	Amount        float64 `json:"amount"` // BTC, as returned by listunspent
	Confirmations int64   `json:"confirmations"`
	Spendable     bool    `json:"spendable"`
}

// DigitDecomposition mirrors contractinfo.DigitDecomposition for wire
// transport.
type DigitDecomposition struct {
	Base     int `json:"base"`
	NbDigits int `json:"nbDigits"`
}

// EventDescriptor mirrors contractinfo.EventDescriptor: exactly one of Digit
// or Enum is set.
type EventDescriptor struct {
	Digit *DigitDecomposition `json:"digit,omitempty"`
	Enum  []string            `json:"enum,omitempty"`
}

// OracleEvent is the wire form of contractinfo.OracleEvent, with nonces
// hex-encoded.
type OracleEvent struct {
	OracleNonces    []string        `json:"oracleNonces"`
	EventDescriptor EventDescriptor `json:"eventDescriptor"`
	EventID         string          `json:"eventId"`
}

// OracleAnnouncement is the wire form of contractinfo.OracleAnnouncement.
type OracleAnnouncement struct {
	OraclePublicKey string      `json:"oraclePublicKey"`
	OracleEvent     OracleEvent `json:"oracleEvent"`
	AnnouncementSig string      `json:"announcementSignature,omitempty"`
}

// OracleAttestation is an oracle's signed outcome report, published once the
// event has occurred.
type OracleAttestation struct {
	EventID   string   `json:"eventId"`
	Outcomes  []string `json:"outcomes"` // digit strings in base order, or a single enum outcome
	Signature string   `json:"signature"`
}

// PayoutPoint mirrors payoutcurve.PayoutPoint for wire transport.
type PayoutPoint struct {
	EventOutcome   uint64 `json:"eventOutcome"`
	OutcomePayout  uint64 `json:"outcomePayout"`
	ExtraPrecision uint16 `json:"extraPrecision"`
}

// PayoutFunctionPiece is one piece of a PayoutFunction: a polynomial
// described by its endpoint payout points, or a hyperbola described by its
// parameters over an outcome range.
type PayoutFunctionPiece struct {
	PolynomialPoints []PayoutPoint `json:"polynomialPoints,omitempty"`
	Hyperbola        *Hyperbola    `json:"hyperbola,omitempty"`
}

// Hyperbola is the wire form of a payoutcurve.HyperbolaPiece.
type Hyperbola struct {
	LeftEndPoint     PayoutPoint `json:"leftEndPoint"`
	RightEndPoint    PayoutPoint `json:"rightEndPoint"`
	UsePositivePiece bool        `json:"usePositivePiece"`
	A                float64     `json:"a"`
	B                float64     `json:"b"`
	C                float64     `json:"c"`
	D                float64     `json:"d"`
	TranslateOutcome float64     `json:"translateOutcome"`
	TranslatePayout  float64     `json:"translatePayout"`
}

// RoundingInterval mirrors payoutcurve.RoundingInterval.
type RoundingInterval struct {
	BeginInterval uint64 `json:"beginInterval"`
	RoundingMod   uint64 `json:"roundingMod"`
}

// EnumOutcome mirrors contractinfo.EnumOutcome.
type EnumOutcome struct {
	Outcome string `json:"outcome"`
	Offer   uint64 `json:"offerPayout"`
	Accept  uint64 `json:"acceptPayout"`
}

// DifferenceParams mirrors contractinfo.DifferenceParams.
type DifferenceParams struct {
	MinSupportExp    int  `json:"minSupportExp"`
	MaxErrorExp      int  `json:"maxErrorExp"`
	MaximizeCoverage bool `json:"maximizeCoverage"`
}

// ContractDescriptor is the wire form of contractinfo.ContractDescriptor.
// Exactly one of EnumOutcomes or Numerical is set.
type ContractDescriptor struct {
	EnumOutcomes []EnumOutcome       `json:"enumOutcomes,omitempty"`
	Numerical    *NumericalWire      `json:"numerical,omitempty"`
}

// NumericalWire is the wire form of contractinfo.NumericalDescriptor.
type NumericalWire struct {
	Pieces            []PayoutFunctionPiece `json:"pieces"`
	RoundingIntervals []RoundingInterval    `json:"roundingIntervals"`
	Base              int                   `json:"base"`
	NbDigits          int                   `json:"nbDigits"`
	Difference        *DifferenceParams     `json:"difference,omitempty"`
}

// ContractState is the lifecycle stage of a contract from the local
// party's point of view.
type ContractState string

const (
	StateOffered  ContractState = "offered"
	StateAccepted ContractState = "accepted"
	StateSigned   ContractState = "signed"
	StateBroadcast ContractState = "broadcast"
	StateConfirmed ContractState = "confirmed"
	StateExecuted  ContractState = "executed"
	StateRefunded  ContractState = "refunded"
	StateFailed    ContractState = "failed"
)

// ContractOffer is the first message of the DLC handshake: one party's
// proposed terms.
type ContractOffer struct {
	ContractID           string               `json:"contractId"`
	ContractDescriptor   ContractDescriptor   `json:"contractDescriptor"`
	OracleAnnouncements  []OracleAnnouncement `json:"oracleAnnouncements"`
	Threshold            int                  `json:"threshold"`
	OfferCollateral      uint64               `json:"offerCollateral"`
	TotalCollateral      uint64               `json:"totalCollateral"`
	FundingPubKey        string               `json:"fundingPubKey"`
	PayoutAddress        string               `json:"payoutAddress"`
	FundingInputs        []Utxo               `json:"fundingInputs"`
	ChangeAddress        string               `json:"changeAddress"`
	FeeRateSatPerVb      int64                `json:"feeRateSatPerVb"`
	ContractTimeoutUnix  int64                `json:"contractTimeoutUnix"`
}

// ContractAccept is the second message: the accepting party's funding and
// sign-ahead commitments.
type ContractAccept struct {
	ContractID           string   `json:"contractId"`
	AcceptCollateral      uint64   `json:"acceptCollateral"`
	FundingPubKey         string   `json:"fundingPubKey"`
	PayoutAddress         string   `json:"payoutAddress"`
	FundingInputs         []Utxo   `json:"fundingInputs"`
	ChangeAddress         string   `json:"changeAddress"`
	CetAdaptorSignatures  []string `json:"cetAdaptorSignatures"` // hex-encoded adaptor signature blobs
	RefundSignature       string   `json:"refundSignature"`
}

// ContractSign is the third message: the offering party's own adaptor
// signatures plus its funding-input signatures, completing the handshake.
type ContractSign struct {
	ContractID           string   `json:"contractId"`
	CetAdaptorSignatures []string `json:"cetAdaptorSignatures"`
	RefundSignature      string   `json:"refundSignature"`
	FundingSignatures    []string `json:"fundingSignatures"`
	FundingScriptPubKey  string   `json:"fundingScriptPubKeyHex"` // the funding output's scriptPubKey, needed to re-derive CET sighashes at execution
}

// StoredContract is the full persisted row for a contract, covering every
// lifecycle stage.
type StoredContract struct {
	ContractID      string         `json:"contractId"`
	State           ContractState  `json:"state"`
	Offer           ContractOffer  `json:"offer"`
	Accept          *ContractAccept `json:"accept,omitempty"`
	Sign            *ContractSign  `json:"sign,omitempty"`
	FundingTxid     string         `json:"fundingTxid,omitempty"`
	FundingVout     uint32         `json:"fundingVout,omitempty"`
	FundOutputValue int64          `json:"fundOutputValue,omitempty"`
	ExecutedCetTxid string         `json:"executedCetTxid,omitempty"`
	CreatedAt       int64          `json:"createdAt"`
	UpdatedAt       int64          `json:"updatedAt"`
}
