package kis

// Wire types for the brokerage's REST API. Field names follow the upstream
// JSON exactly; rt_cd "0" marks success on every trading/query endpoint.

const rtSuccess = "0"

// Transaction-type codes. The sandbox environment uses a distinct code per
// operation, not just a different host.
const (
	trOrderBuyLive     = "TTTC0011U"
	trOrderSellLive    = "TTTC0012U"
	trOrderBuySandbox  = "VTTC0011U"
	trOrderSellSandbox = "VTTC0012U"

	trBalanceLive    = "TTTC8434R"
	trBalanceSandbox = "VTTC8434R"

	trAccountBalance = "CTRP6548R"
	trCurrentPrice   = "FHKST01010100"
)

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type orderRequest struct {
	CANO        string `json:"CANO"`
	ProductCode string `json:"ACNT_PRDT_CD"`
	Symbol      string `json:"PDNO"`
	Division    string `json:"ORD_DVSN"`
	Quantity    string `json:"ORD_QTY"`
	UnitPrice   string `json:"ORD_UNPR"`
}

type orderResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		OrderNo   string `json:"ODNO"`
		OrderTime string `json:"ORD_TMD"`
	} `json:"output"`
}

type balanceResponse struct {
	RtCd    string       `json:"rt_cd"`
	Msg1    string       `json:"msg1"`
	Output1 []balanceRow `json:"output1"`
}

type balanceRow struct {
	TotalAsset string `json:"samt"`
	Deposit    string `json:"dnca_tot_amt"`
	TotalBuy   string `json:"thdt_buy_amt"`
	TotalEval  string `json:"tot_evlu_amt"`
	ProfitLoss string `json:"evlu_pfls_smtl_amt"`
	ProfitRate string `json:"evlu_pfls_rt"`
}

type accountBalanceResponse struct {
	RtCd    string        `json:"rt_cd"`
	Msg1    string        `json:"msg1"`
	Output1 []positionRow `json:"output1"`
}

type positionRow struct {
	Symbol     string `json:"pdno"`
	Name       string `json:"prdt_name"`
	Quantity   string `json:"hldg_qty"`
	EvalAmount string `json:"evlu_amt"`
	ProfitLoss string `json:"evlu_pfls_amt"`
}

type priceResponse struct {
	RtCd   string `json:"rt_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		CurrentPrice string `json:"stck_prpr"`
		ChangeRate   string `json:"prdy_ctrt"`
		Volume       string `json:"acml_vol"`
	} `json:"output"`
}
