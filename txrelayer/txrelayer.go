package txrelayer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/ethgo/wallet"
)

const (
	defaultGasPrice = 1879048192 // 0x70000000
	defaultGasLimit = 5242880    // 0x500000

	receiptPollInterval = 50 * time.Millisecond
	receiptPollRetries  = 100
)

// TxRelayer sends read calls and signed transactions to an EVM chain
type TxRelayer interface {
	// Call queries a smart contract on given 'to' address
	Call(from ethgo.Address, to ethgo.Address, input []byte) (string, error)
	// SendTransaction signs the transaction with the given key, submits it
	// and waits for its receipt
	SendTransaction(txn *ethgo.Transaction, key ethgo.Key) (*ethgo.Receipt, error)
	// BlockNumber returns the chain head height
	BlockNumber() (uint64, error)
}

var _ TxRelayer = (*TxRelayerImpl)(nil)

type TxRelayerImpl struct {
	ipAddress string
	client    *jsonrpc.Client
}

type TxRelayerOption func(*TxRelayerImpl)

func WithIPAddress(ipAddress string) TxRelayerOption {
	return func(t *TxRelayerImpl) {
		t.ipAddress = ipAddress
	}
}

func WithClient(client *jsonrpc.Client) TxRelayerOption {
	return func(t *TxRelayerImpl) {
		t.client = client
	}
}

func NewTxRelayer(opts ...TxRelayerOption) (*TxRelayerImpl, error) {
	t := &TxRelayerImpl{
		ipAddress: "127.0.0.1:8545",
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := jsonrpc.NewClient(t.ipAddress)
		if err != nil {
			return nil, err
		}

		t.client = client
	}

	return t, nil
}

// Call queries a smart contract on given 'to' address
func (t *TxRelayerImpl) Call(from ethgo.Address, to ethgo.Address, input []byte) (string, error) {
	callMsg := &ethgo.CallMsg{
		From:     from,
		To:       &to,
		Data:     input,
		GasPrice: defaultGasPrice,
		Gas:      big.NewInt(defaultGasLimit),
	}

	return t.client.Eth().Call(callMsg, ethgo.Pending)
}

func (t *TxRelayerImpl) SendTransaction(txn *ethgo.Transaction, key ethgo.Key) (*ethgo.Receipt, error) {
	pendingNonce, err := t.client.Eth().GetNonce(key.Address(), ethgo.Pending)
	if err != nil {
		return nil, err
	}

	txn.GasPrice = defaultGasPrice
	txn.Gas = defaultGasLimit
	txn.Nonce = pendingNonce

	chainID, err := t.client.Eth().ChainID()
	if err != nil {
		return nil, err
	}

	signer := wallet.NewEIP155Signer(chainID.Uint64())
	if txn, err = signer.SignTx(txn, key); err != nil {
		return nil, err
	}

	data, err := txn.MarshalRLPTo(nil)
	if err != nil {
		return nil, err
	}

	txnHash, err := t.client.Eth().SendRawTransaction(data)
	if err != nil {
		return nil, err
	}

	return t.waitForReceipt(txnHash)
}

func (t *TxRelayerImpl) BlockNumber() (uint64, error) {
	return t.client.Eth().BlockNumber()
}

func (t *TxRelayerImpl) waitForReceipt(hash ethgo.Hash) (*ethgo.Receipt, error) {
	var receipt *ethgo.Receipt

	backoff := retry.WithMaxRetries(receiptPollRetries, retry.NewConstant(receiptPollInterval))

	err := retry.Do(context.Background(), backoff, func(context.Context) error {
		var err error

		receipt, err = t.client.Eth().GetTransactionReceipt(hash)
		if err != nil && err.Error() != "not found" {
			return err
		}

		if receipt == nil {
			return retry.RetryableError(fmt.Errorf("transaction %s not yet mined", hash))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}
