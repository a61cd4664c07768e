package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"poolSim/internal/model"
)

// Decoder decodes V3 pool logs into typed event payloads.
type Decoder struct {
	poolABI     abi.ABI
	topicToName map[common.Hash]string
}

// NewDecoder builds a decoder for the pool events the replayer understands.
func NewDecoder() (*Decoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[common.Hash]string)
	for _, name := range []string{"Initialize", "Swap", "Mint", "Burn", "Collect"} {
		topicToName[poolABI.Events[name].ID] = name
	}

	return &Decoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// Topics returns the topic0 hashes of all supported events, for log filtering.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, topic)
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToName[topic0]
	return ok
}

// Decode converts a log into its event name and typed payload.
func (d *Decoder) Decode(log types.Log) (string, interface{}, error) {
	if len(log.Topics) == 0 {
		return "", nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return "", nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case "Initialize":
		decoded, err = d.decodeInitialize(log)
	case "Swap":
		decoded, err = d.decodeSwap(log)
	case "Mint":
		decoded, err = d.decodeMint(log)
	case "Burn":
		decoded, err = d.decodeBurn(log)
	case "Collect":
		decoded, err = d.decodeCollect(log)
	default:
		err = fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return "", nil, err
	}
	return name, decoded, nil
}

func (d *Decoder) decodeInitialize(log types.Log) (model.InitializeEventData, error) {
	event := d.poolABI.Events["Initialize"]
	values, err := unpackNonIndexed(event, log)
	if err != nil {
		return model.InitializeEventData{}, err
	}
	if len(values) != 2 {
		return model.InitializeEventData{}, fmt.Errorf("unexpected initialize values: %d", len(values))
	}

	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.InitializeEventData{}, err
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.InitializeEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.InitializeEventData{}, err
	}

	return model.InitializeEventData{
		SqrtPriceX96: sqrtPrice.String(),
		Tick:         tick,
	}, nil
}

func (d *Decoder) decodeSwap(log types.Log) (model.SwapEventData, error) {
	event := d.poolABI.Events["Swap"]

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := parseIndexedTopics(&indexed, event, log); err != nil {
		return model.SwapEventData{}, err
	}

	values, err := unpackNonIndexed(event, log)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
	}, nil
}

func (d *Decoder) decodeMint(log types.Log) (model.MintEventData, error) {
	event := d.poolABI.Events["Mint"]

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := parseIndexedTopics(&indexed, event, log); err != nil {
		return model.MintEventData{}, err
	}

	values, err := unpackNonIndexed(event, log)
	if err != nil {
		return model.MintEventData{}, err
	}
	if len(values) != 4 {
		return model.MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return model.MintEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.MintEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.MintEventData{}, err
	}

	return model.MintEventData{
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *Decoder) decodeBurn(log types.Log) (model.BurnEventData, error) {
	event := d.poolABI.Events["Burn"]

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := parseIndexedTopics(&indexed, event, log); err != nil {
		return model.BurnEventData{}, err
	}

	values, err := unpackNonIndexed(event, log)
	if err != nil {
		return model.BurnEventData{}, err
	}
	if len(values) != 3 {
		return model.BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.BurnEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.BurnEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.BurnEventData{}, err
	}

	return model.BurnEventData{
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *Decoder) decodeCollect(log types.Log) (model.CollectEventData, error) {
	event := d.poolABI.Events["Collect"]

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := parseIndexedTopics(&indexed, event, log); err != nil {
		return model.CollectEventData{}, err
	}

	values, err := unpackNonIndexed(event, log)
	if err != nil {
		return model.CollectEventData{}, err
	}
	if len(values) != 3 {
		return model.CollectEventData{}, fmt.Errorf("unexpected collect values: %d", len(values))
	}

	recipient, err := asAddress(values[0])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.CollectEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.CollectEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.CollectEventData{}, err
	}

	return model.CollectEventData{
		Owner:     indexed.Owner.Hex(),
		Recipient: recipient.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func parseIndexedTopics(out interface{}, event abi.Event, log types.Log) error {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, log types.Log) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
