// Command walletcli manages local keys and talks to a running noded over
// the peer protocol to check balances and send coins. Grounded on the
// teacher's cli/cli.go command-dispatch shape (flag.NewFlagSet per
// subcommand, switch on os.Args[1]), generalized from direct badger/chain
// access to RPC calls against a node, since wallet and node are now
// separate processes.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/satoshilite/core/internal/p2p"
	"github.com/satoshilite/core/internal/txn"
	"github.com/satoshilite/core/internal/wallet"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println(" createwallet -keys DIR")
	fmt.Println(" listaddresses -keys DIR")
	fmt.Println(" getbalance -keys DIR -fingerprint FP -node HOST:PORT")
	fmt.Println(" send -keys DIR -from FP -to HEXADDRESS -amount N -fee N -node HOST:PORT")
	fmt.Println(" printchain -node HOST:PORT")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openWallets(dir string) *wallet.Wallets {
	ws, err := wallet.Open(dir)
	if err != nil {
		fatalf("open wallet keys: %v", err)
	}
	return ws
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		runtime.Goexit()
	}

	createWalletCmd := flag.NewFlagSet("createwallet", flag.ExitOnError)
	createWalletKeys := createWalletCmd.String("keys", "./keys", "wallet key directory")

	listAddressesCmd := flag.NewFlagSet("listaddresses", flag.ExitOnError)
	listAddressesKeys := listAddressesCmd.String("keys", "./keys", "wallet key directory")

	getBalanceCmd := flag.NewFlagSet("getbalance", flag.ExitOnError)
	getBalanceKeys := getBalanceCmd.String("keys", "./keys", "wallet key directory")
	getBalanceFingerprint := getBalanceCmd.String("fingerprint", "", "wallet fingerprint to check")
	getBalanceNode := getBalanceCmd.String("node", "localhost:3000", "node RPC address")

	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	sendKeys := sendCmd.String("keys", "./keys", "wallet key directory")
	sendFrom := sendCmd.String("from", "", "sending wallet's fingerprint")
	sendTo := sendCmd.String("to", "", "receiving hex-encoded address (32 bytes)")
	sendAmount := sendCmd.Uint64("amount", 0, "amount to send")
	sendFee := sendCmd.Uint64("fee", 0, "transaction fee")
	sendNode := sendCmd.String("node", "localhost:3000", "node RPC address")

	printChainCmd := flag.NewFlagSet("printchain", flag.ExitOnError)
	printChainNode := printChainCmd.String("node", "localhost:3000", "node RPC address")

	switch os.Args[1] {
	case "createwallet":
		mustParse(createWalletCmd)
	case "listaddresses":
		mustParse(listAddressesCmd)
	case "getbalance":
		mustParse(getBalanceCmd)
	case "send":
		mustParse(sendCmd)
	case "printchain":
		mustParse(printChainCmd)
	default:
		printUsage()
		runtime.Goexit()
	}

	switch {
	case createWalletCmd.Parsed():
		runCreateWallet(*createWalletKeys)
	case listAddressesCmd.Parsed():
		runListAddresses(*listAddressesKeys)
	case getBalanceCmd.Parsed():
		if *getBalanceFingerprint == "" {
			getBalanceCmd.Usage()
			runtime.Goexit()
		}
		runGetBalance(*getBalanceKeys, *getBalanceFingerprint, *getBalanceNode)
	case sendCmd.Parsed():
		if *sendFrom == "" || *sendTo == "" || *sendAmount == 0 {
			sendCmd.Usage()
			runtime.Goexit()
		}
		runSend(*sendKeys, *sendFrom, *sendTo, *sendAmount, *sendFee, *sendNode)
	case printChainCmd.Parsed():
		runPrintChain(*printChainNode)
	}
}

func mustParse(fs *flag.FlagSet) {
	if err := fs.Parse(os.Args[2:]); err != nil {
		fatalf("parse flags: %v", err)
	}
}

func runCreateWallet(dir string) {
	ws := openWallets(dir)
	w, err := ws.Add()
	if err != nil {
		fatalf("create wallet: %v", err)
	}
	fmt.Printf("new wallet created\n  display address: %s\n  on-chain address: %s\n",
		w.DisplayAddress(), hex.EncodeToString(w.KeyPair.Public))
}

func runListAddresses(dir string) {
	ws := openWallets(dir)
	for _, fp := range ws.Fingerprints() {
		w, _ := ws.Get(fp)
		fmt.Printf("%s  %s  %s\n", fp, w.DisplayAddress(), hex.EncodeToString(w.KeyPair.Public))
	}
}

func runGetBalance(dir, fingerprint, nodeAddr string) {
	ws := openWallets(dir)
	w, ok := ws.Get(fingerprint)
	if !ok {
		fatalf("no wallet with fingerprint %s in %s", fingerprint, dir)
	}
	addr, err := w.Address()
	if err != nil {
		fatalf("derive address: %v", err)
	}

	peer := &p2p.Peer{Address: nodeAddr}
	utxos, err := p2p.GetUTXO(peer, addr)
	if err != nil {
		fatalf("query balance: %v", err)
	}

	var balance txn.Satoshi
	for _, u := range utxos {
		balance += u.Value
	}
	fmt.Printf("balance of %s: %d\n", w.DisplayAddress(), balance)
}

func runSend(dir, fromFingerprint, toHex string, amount, fee uint64, nodeAddr string) {
	ws := openWallets(dir)
	w, ok := ws.Get(fromFingerprint)
	if !ok {
		fatalf("no wallet with fingerprint %s in %s", fromFingerprint, dir)
	}

	toBytes, err := hex.DecodeString(toHex)
	if err != nil {
		fatalf("decode -to address: %v", err)
	}
	to, err := txn.AddressFromBytes(toBytes)
	if err != nil {
		fatalf("decode -to address: %v", err)
	}

	peer := &p2p.Peer{Address: nodeAddr}
	fromAddr, err := w.Address()
	if err != nil {
		fatalf("derive sender address: %v", err)
	}
	utxos, err := p2p.GetUTXO(peer, fromAddr)
	if err != nil {
		fatalf("query spendable outputs: %v", err)
	}

	refs := make([]txn.UTXORef, len(utxos))
	for i, u := range utxos {
		refs[i] = txn.UTXORef{PrevTxHash: u.TxHash, OutIndex: u.OutIndex, Value: u.Value}
	}

	tx, err := txn.CreatePayToPubKeyHash(refs, txn.Satoshi(amount), txn.Satoshi(fee), w.KeyPair, to)
	if err != nil {
		fatalf("build transaction: %v", err)
	}

	if err := p2p.AddTransaction(peer, tx); err != nil {
		fatalf("submit transaction: %v", err)
	}
	fmt.Printf("submitted transaction %s\n", tx.Hash())
}

func runPrintChain(nodeAddr string) {
	peer := &p2p.Peer{Address: nodeAddr}
	blocks, err := p2p.GetChain(peer)
	if err != nil {
		fatalf("fetch chain: %v", err)
	}
	for _, b := range blocks {
		fmt.Printf("height hash=%s prev=%s txs=%d difficulty=%d nonce=%d\n",
			b.Hash, b.Header.PreviousBlockHash, len(b.Transactions), b.Header.Difficulty, b.Header.Nonce)
	}
}
