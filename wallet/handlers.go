package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/block"
	"github.com/tarancss/cryptowallet/lib/block/types"
	"github.com/tarancss/cryptowallet/lib/monitor"
	ptypes "github.com/tarancss/cryptowallet/lib/price/types"
)

// Messages replied to clients.
const (
	msgBadBody      = "Invalid request body"
	msgNoPrice      = "Unable to fetch current price"
	msgBuyFailed    = "Purchase failed. Please try again."
	msgBadTx        = "Invalid transaction parameters"
	msgBadAddress   = "Invalid wallet address format"
	msgSendFailed   = "Transaction failed. Please try again."
	welcome         = "Hello, this is your crypto wallet!"
	maxBodyBytes    = 1 << 16
	contentTypeJSON = "application/json;charset=utf8"
)

// Errors returned to client requests.
var (
	ErrBadrequest = errors.New("bad request")
	ErrBuyParams  = errors.New("invalid buy parameters")
	ErrTxParams   = errors.New("invalid transaction parameters")
)

// Response defines the data structure returned to the client for the home page.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// ErrorResponse is replied on failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BuyReq is the request to buy AmountUSD dollars worth of Symbol.
type BuyReq struct {
	Symbol    string  `json:"symbol"`
	AmountUSD float64 `json:"amountUSD"`
	UserID    string  `json:"userId"`
}

// BuyRes is replied to a successful buy.
type BuyRes struct {
	Success     bool           `json:"success"`
	Transaction types.Purchase `json:"transaction"`
	Message     string         `json:"message"`
}

// SendReq is the request to send Amount of Symbol to ToAddress.
type SendReq struct {
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount"`
	ToAddress string  `json:"toAddress"`
	UserID    string  `json:"userId"`
}

// SendRes is replied to a submitted send.
type SendRes struct {
	Success     bool        `json:"success"`
	Transaction types.Trans `json:"transaction"`
	Message     string      `json:"message"`
	ExplorerURL string      `json:"explorerUrl"`
}

// reply writes v as the JSON body of the response with the given status.
func reply(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", contentTypeJSON)
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// decode reads the JSON body of r into v.
func decode(rw http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadrequest, err)
	}

	return nil
}

// usd formats a dollar amount the way it was received, without trailing zeros.
func usd(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// homeHandler just replies a welcome message to the client.
func (w *Wallet) homeHandler(rw http.ResponseWriter, r *http.Request) {
	log.Printf("httpreq from %v %s", r.RemoteAddr, r.RequestURI)
	reply(rw, http.StatusOK, Response{Body: welcome})
}

// healthHandler replies ok while the service is up.
func (w *Wallet) healthHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain;charset=utf8")
	_, _ = rw.Write([]byte("ok"))
}

// pricesHandler replies the quote of every asset in the basket. It never fails: when upstream is unavailable the
// quotes come from the cache or the fallback table, as told by the source header.
func (w *Wallet) pricesHandler(rw http.ResponseWriter, r *http.Request) {
	res := w.Feed.Prices(r.Context())

	log.Printf("httpreq from %v %s source:%s symbols:%d", r.RemoteAddr, r.RequestURI, res.Source, len(res.Quotes))

	rw.Header().Set("Cache-Control", "no-store")
	rw.Header().Set(ptypes.HeaderSource, string(res.Source))
	rw.Header().Set(ptypes.HeaderCapturedAt, res.CapturedAt.UTC().Format(time.RFC3339Nano))
	reply(rw, http.StatusOK, res.Quotes)
}

// newsHandler replies the trending coins.
func (w *Wallet) newsHandler(rw http.ResponseWriter, r *http.Request) {
	res := w.News.Coins(r.Context())

	log.Printf("httpreq from %v %s coins:%d", r.RemoteAddr, r.RequestURI, len(res.Coins))
	reply(rw, http.StatusOK, res)
}

// buyHandler simulates a market buy of amountUSD dollars of symbol at the current price. A fee is added on top.
func (w *Wallet) buyHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var req BuyReq

	var res BuyRes

	var msg string

	status := http.StatusOK

	defer func() {
		// reply to requester accordingly
		log.Printf("httpreq from %v %s status:%d id:%s err:%v", r.RemoteAddr, r.RequestURI, status,
			res.Transaction.ID, err)

		if err != nil {
			reply(rw, status, ErrorResponse{Error: msg})

			return
		}

		reply(rw, status, res)
	}()

	if err = decode(rw, r, &req); err != nil {
		status, msg = http.StatusBadRequest, msgBadBody

		return
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || req.AmountUSD <= 0 || req.AmountUSD < w.set.BuyMinUSD {
		err = ErrBuyParams
		status, msg = http.StatusBadRequest, fmt.Sprintf("Invalid parameters. Minimum purchase is $%s.", usd(w.set.BuyMinUSD))

		return
	}

	var p float64

	if p, err = w.Feed.Price(r.Context(), req.Symbol); err != nil {
		status, msg = http.StatusBadRequest, msgNoPrice

		return
	}

	var id uuid.UUID

	if id, err = uuid.NewRandom(); err != nil {
		status, msg = http.StatusInternalServerError, msgBuyFailed

		return
	}

	amount := decimal.NewFromFloat(req.AmountUSD)
	crypto := amount.Div(decimal.NewFromFloat(p))
	fee := amount.Mul(decimal.NewFromFloat(w.set.BuyFeeRate))

	res = BuyRes{
		Success: true,
		Transaction: types.Purchase{
			ID:           "tx_" + id.String(),
			Type:         types.TypeBuy,
			Symbol:       req.Symbol,
			CryptoAmount: crypto.InexactFloat64(),
			USDAmount:    req.AmountUSD,
			Fee:          fee.InexactFloat64(),
			TotalCost:    amount.Add(fee).InexactFloat64(),
			Price:        p,
			Timestamp:    time.Now().UTC(),
			Status:       types.TrxCompleted,
			UserID:       req.UserID,
		},
		Message: fmt.Sprintf("Successfully purchased %s %s for $%s", crypto.StringFixed(6), req.Symbol, usd(req.AmountUSD)),
	}

	monitor.Transactions.WithLabelValues(types.TypeBuy, types.TrxCompleted).Inc()
}

// sendHandler simulates sending amount of symbol to toAddress. The transaction is pending and gets confirmed after a
// delay, either in process or by the confirmer service.
func (w *Wallet) sendHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var req SendReq

	var res SendRes

	var msg string

	status := http.StatusOK

	defer func() {
		// reply to requester accordingly
		log.Printf("httpreq from %v %s status:%d hash:%s err:%v", r.RemoteAddr, r.RequestURI, status,
			res.Transaction.TxHash, err)

		if err != nil {
			reply(rw, status, ErrorResponse{Error: msg})

			return
		}

		reply(rw, status, res)
	}()

	if err = decode(rw, r, &req); err != nil {
		status, msg = http.StatusBadRequest, msgBadBody

		return
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || req.ToAddress == "" || req.Amount <= 0 {
		err = ErrTxParams
		status, msg = http.StatusBadRequest, msgBadTx

		return
	}

	chain := block.Get(w.Chains, req.Symbol)

	var tx types.Trans

	if tx, err = chain.Send(req.ToAddress, req.Amount); err != nil {
		switch {
		case errors.Is(err, types.ErrBadAddress):
			status, msg = http.StatusBadRequest, msgBadAddress
		case errors.Is(err, types.ErrBadAmount):
			status, msg = http.StatusBadRequest, msgBadTx
		default:
			status, msg = http.StatusInternalServerError, msgSendFailed
		}

		return
	}

	tx.UserID = req.UserID

	w.submit(tx)
	monitor.Transactions.WithLabelValues(types.TypeSend, types.TrxPending).Inc()

	res = SendRes{
		Success:     true,
		Transaction: tx,
		Message:     fmt.Sprintf("Transaction submitted to %s network", tx.Symbol),
		ExplorerURL: chain.ExplorerURL(tx.TxHash),
	}
}
