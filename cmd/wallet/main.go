// Package main: wallet service.
//
// The database is optional and only keeps the last upstream price snapshot, so several wallet instances share one
// cache. The message broker is optional too: without it sends are confirmed in process, with it they are handed to
// the confirmer service.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/confirmer"
	"github.com/tarancss/cryptowallet/lib/block"
	"github.com/tarancss/cryptowallet/lib/coingecko"
	"github.com/tarancss/cryptowallet/lib/config"
	"github.com/tarancss/cryptowallet/lib/monitor"
	"github.com/tarancss/cryptowallet/lib/msg"
	"github.com/tarancss/cryptowallet/lib/msg/amqp"
	"github.com/tarancss/cryptowallet/lib/payment"
	"github.com/tarancss/cryptowallet/lib/price"
	"github.com/tarancss/cryptowallet/lib/store"
	"github.com/tarancss/cryptowallet/lib/store/db"
	"github.com/tarancss/cryptowallet/wallet"
)

const cacheKey = "crypto-prices"

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from a json or yaml file")
	metrics := flag.Bool("m", false, "flag to expose Prometheus metrics on the metrics port")
	flag.Parse()

	// a missing .env file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	if err = config.SetupLogging(conf.LogLevel, conf.LogFormat); err != nil {
		panic(err)
	}

	log.Printf("Configuration:%s", conf)

	// connect to database
	var dbConn store.DB

	if conf.DbConn != "" {
		if dbConn, err = db.New(conf.DbType, conf.DbConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to %s database:%+v", conf.DbType, conf.DbConn)
	}

	// load all networks
	chains, err := block.Init(conf.Networks)
	if err != nil {
		panic(err)
	}

	log.Printf("Network clients loaded: %d", len(chains))

	// load Prometheus monitor
	if *metrics {
		go func() {
			log.Printf("Serving metrics API on port %s", conf.MetricsPort)

			h := http.NewServeMux()
			h.Handle("/metrics", monitor.Handler())

			s := &http.Server{Addr: ":" + conf.MetricsPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
			if err := s.ListenAndServe(); err != nil {
				log.Printf("Metrics API: %v", err)
			}
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}
	default:
		log.Printf("No message broker, sends are confirmed in process")
	}

	// price feed
	md := coingecko.New(
		coingecko.WithBaseURL(conf.PriceAPI),
		coingecko.WithTimeout(config.Seconds(conf.PriceTimeout)),
		coingecko.WithRequestsPerMinute(conf.PriceRPM),
	)
	basket := price.NewBasket(conf.Networks)

	var cache price.Cache = price.NewMemoryCache(config.Seconds(conf.CacheTTL))
	if dbConn != nil {
		cache = price.NewStoreCache(dbConn, cacheKey, config.Seconds(conf.CacheTTL))
	}

	sim := price.NewSimulator(price.SimConfig{
		Probability: conf.SimProbability,
		PriceRange:  conf.SimPriceRange,
		ChangeRange: conf.SimChangeRange,
		CapFactor:   conf.SimCapFactor,
		VolumeRange: conf.SimVolumeRange,
	}, nil)

	// payment gateway
	var gw payment.Gateway

	stripe, err := payment.NewStripe(conf.StripeKey)

	switch {
	case err == nil:
		gw = stripe
	case errors.Is(err, payment.ErrNotConfigured):
		log.Printf("Payment gateway not configured, deposits run in demo mode")
	default:
		panic(err)
	}

	nets := make([]string, 0, len(chains))
	for sym := range chains {
		nets = append(nets, sym)
	}

	// create wallet service
	w := wallet.New(wallet.Settings{
		BuyMinUSD:       conf.BuyMinUSD,
		BuyFeeRate:      conf.BuyFeeRate,
		DepositMin:      conf.DepositMin,
		StreamInterval:  config.Seconds(conf.StreamInterval),
		UpstreamTimeout: config.Seconds(conf.PriceTimeout),
	}, wallet.Services{
		Feed:      price.NewFeed(cache, price.NewCoinGecko(md, basket), sim, basket),
		News:      price.NewTrending(md, config.Seconds(conf.NewsTTL)),
		Chains:    chains,
		Confirmer: confirmer.New(mb, nets, config.Seconds(conf.ConfirmDelay)),
		Broker:    mb,
		Gateway:   gw,
		Webhook:   payment.NewWebhook(conf.StripeWebhookSecret, nil),
		DBType:    conf.DbType,
		DB:        dbConn,
	})

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		w.Stop()
		close(finish)
	}()

	// manage confirmer events
	if err := w.ManageEvents(); err != nil {
		log.Printf("Error setting up broker readers for events:%v", err)
	}

	// init RESTful API, wait for its return and log response
	log.Printf("Wallet: %s", w.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}
