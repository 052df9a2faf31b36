// Package main: confirmer service.
//
// It consumes the sends submitted by the wallet through the message broker and, after the configured delay, publishes
// them back as confirmed events. It requires a message broker.
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
	"github.com/tarancss/cryptowallet/lib/config"
	"github.com/tarancss/cryptowallet/lib/monitor"
	"github.com/tarancss/cryptowallet/lib/msg"
	"github.com/tarancss/cryptowallet/lib/msg/amqp"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from a json or yaml file")
	metrics := flag.Bool("m", false, "flag to expose Prometheus metrics on the metrics port")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	// extract configuration
	var err error

	var conf config.ServiceConfig

	if conf, err = config.ExtractConfiguration(*confPath); err != nil {
		panic(err)
	}

	if err = config.SetupLogging(conf.LogLevel, conf.LogFormat); err != nil {
		panic(err)
	}

	log.Printf("Configuration:%s", conf)

	// load all networks, only their symbols are needed to name the broker queues
	var chains map[string]block.Chain
	if chains, err = block.Init(conf.Networks); err != nil {
		panic(err)
	}

	nets := make([]string, 0, len(chains))
	for sym := range chains {
		nets = append(nets, sym)
	}

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

		defer func() {
			errClose := mb.Close()
			log.Printf("Closing messageBroker: %v", errClose)
		}()
	default:
		log.Fatalf("Unknown message broker type: %q", conf.MbType)
	}

	// create confirmer service
	c := confirmer.New(mb, nets, config.Seconds(conf.ConfirmDelay))

	done, err := c.Confirm()
	if err != nil {
		panic(err)
	}

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// cancel pending confirmations and end the network consumers
		c.Stop()
	}()

	log.Printf("Confirm: %s", <-done)
}
