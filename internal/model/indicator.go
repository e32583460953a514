package model

// IndicatorSnapshot is the parallel series aligned to the 5m bar series,
// one value set per closed bar index. Fields whose warm-up period hasn't
// elapsed carry Available=false — that is distinct from a legitimate zero.
type IndicatorSnapshot struct {
	Available bool `json:"available"`

	ATR14    float64 `json:"atr14"`
	ATR5     float64 `json:"atr5"`
	RSI14    float64 `json:"rsi14"`
	BBUpper  float64 `json:"bb_upper"`
	BBLower  float64 `json:"bb_lower"`
	BBWidth  float64 `json:"bb_width"`
	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	VolZ50   float64 `json:"vol_z50"`
	OBV      float64 `json:"obv"`
	OBVZ10   float64 `json:"obv_z10"`
	IsLocalHigh bool `json:"is_local_high"`
	IsLocalLow  bool `json:"is_local_low"`
}
