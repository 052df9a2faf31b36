// Package cryptowallet and its sub-packages implement the backend services of a demo crypto wallet.
/*
cryptowallet provides you with two microservices and a command line client:

1) a wallet microservice (package wallet) that implements a RESTful API serving market prices and trending coins,
 simulated buys and sends, and deposits through a payment gateway. Prices are also pushed to websocket subscribers.

2) a confirmer microservice (package confirmer) that confirms the sends submitted by wallet services after a delay.

3) pricewatch (package lib/poller and cmd/pricewatch), a client that values a local holdings file at the prices
 served by a wallet.

Architecture

Market prices come from CoinGecko (package lib/coingecko) and are kept in a cache with a TTL (package lib/price). The
cache can live in memory or in a database shared by several wallet instances (package lib/store, with mongodb,
postgresql and sqlite implementations). Answers served from the cache or from the built-in fallback table get small
random movements so prices look alive; only real upstream answers and the fallback table are ever stored. Every
response tells its source (live, cache or fallback) so clients can warn their users.

Networks are simulated (package lib/block): addresses are validated against per network patterns and sends produce
pending transactions with a fabricated hash. Nothing is broadcast and no balances are kept.

The wallet and confirmer services communicate via a message broker (package lib/msg, with an AMQP implementation).
Wallets publish submitted sends and the confirmer publishes them back confirmed, which wallets log. Without a broker
the wallet confirms sends in process.

Deposits create payment intents with Stripe (package lib/payment). The gateway webhook is verified with the shared
signing secret. When the gateway is not configured deposits reply a demo payload so clients can carry on.

Configuration is read from a JSON or YAML file and CW_ prefixed environment variables (package lib/config). The
services can also be monitored via a Prometheus API by setting the flag "-m" at startup (package lib/monitor).

Wallet

The wallet microservice can be started running cmd/wallet/main.go. See package wallet for the routes.

Confirmer

The confirmer microservice can be started running cmd/confirmer/main.go. It requires a message broker.

Pricewatch

cmd/pricewatch polls the prices endpoint, or subscribes to the price stream with -stream, and prints the holdings
valued at the latest prices. It can also record buys and sends in the holdings file.

*/
package cryptowallet
