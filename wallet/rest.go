package wallet

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/monitor"
)

const (
	timeout       = 15              // seconds
	writeHeadroom = 5 * time.Second // to write a fallback answer after upstream gave up
)

// Router returns the RESTful API definition.
func (w *Wallet) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/", monitor.Instrument("home", w.homeHandler))
	r.Handle("/healthz", monitor.Instrument("health", w.healthHandler)).Methods("GET")
	r.Handle("/api/crypto-prices", monitor.Instrument("prices", w.pricesHandler)).Methods("GET")    // prices of the basket
	r.HandleFunc("/api/crypto-prices/stream", w.streamHandler).Methods("GET")                      // websocket price stream
	r.Handle("/api/crypto-news", monitor.Instrument("news", w.newsHandler)).Methods("GET")         // trending coins
	r.Handle("/api/crypto/buy", monitor.Instrument("buy", w.buyHandler)).Methods("POST")           // simulated buy
	r.Handle("/api/crypto/send", monitor.Instrument("send", w.sendHandler)).Methods("POST")        // simulated send
	r.Handle("/api/payments/deposit", monitor.Instrument("deposit", w.depositHandler)).Methods("POST")
	r.Handle("/api/payments/webhook", monitor.Instrument("webhook", w.webhookHandler)).Methods("POST")

	return r
}

// server returns an http server for addr. Writing a response may take as long as the upstream request behind it
// plus headroom, so a fallback answer built after an upstream timeout still reaches the client.
func (w *Wallet) server(addr string, h http.Handler) *http.Server {
	wt := w.set.UpstreamTimeout + writeHeadroom
	if wt < w.set.RequestTimeout {
		wt = w.set.RequestTimeout
	}

	return &http.Server{
		Handler:           h,
		Addr:              addr,
		WriteTimeout:      wt,
		ReadTimeout:       w.set.RequestTimeout,
		ReadHeaderTimeout: w.set.RequestTimeout,
	}
}

// Init sets up and starts the http/https server to service the RESTful API for a wallet service. If sslPort, ssCert
// and sslKey are informed, it will start an https (TLS) server on the specified endpoint. It returns once Stop has
// been called.
func (w *Wallet) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	r := w.Router()

	// start http server
	if port != "" {
		w.s = w.server(endpoint+":"+port, r)

		go func() {
			err = w.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		w.ss = w.server(endpoint+":"+sslPort, r)

		go func() {
			errTLS = w.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-w.sc

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}
