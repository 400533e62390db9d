// Command evmrun is a minimal demo entrypoint: it drives one simulated
// CALL or CREATE through the simulator/interpreter/statejournal packages
// and prints the result, driving simulator.Simulate directly instead of
// through a CLI framework.
package main

import (
	"flag"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/interpreter"
	"github.com/gealber/evm-core/rpcbackend"
	"github.com/gealber/evm-core/simulator"
	"github.com/gealber/evm-core/statejournal"
	"github.com/holiman/uint256"
)

func main() {
	var (
		rpcEndpoint = flag.String("rpc", "", "JSON-RPC endpoint to fork state from (omit to run against an empty, in-memory journal)")
		block       = flag.String("block", "latest", "block tag to read forked state at")
		from        = flag.String("from", "0x0000000000000000000000000000000000000000", "caller address")
		to          = flag.String("to", "0x0000000000000000000000000000000000000000", "callee address (new contract address when -create is set)")
		codeHex     = flag.String("code", "", "hex bytecode: deployed code to call, or init code when -create is set")
		inputHex    = flag.String("input", "", "hex calldata")
		value       = flag.String("value", "0", "wei value to transfer, decimal")
		gasLimit    = flag.Uint64("gas", 1_000_000, "gas limit")
		create      = flag.Bool("create", false, "treat -code as init code and run a CREATE instead of a CALL")
	)
	flag.Parse()

	var backend statejournal.Backend
	if *rpcEndpoint != "" {
		backend = rpcbackend.NewClient(*rpcEndpoint, *block)
	}
	journal := statejournal.New(backend, true)
	cache, err := analysis.NewCache(256)
	if err != nil {
		log.Error("building analysis cache", "err", err)
		os.Exit(1)
	}
	blockCtx := interpreter.BlockContext{
		GasLimit:    30_000_000,
		BlockNumber: 1,
		ChainID:     uint256.NewInt(1),
		BaseFee:     new(uint256.Int),
		BlobBaseFee: new(uint256.Int),
	}
	sim := simulator.NewSimulator(journal, cache, blockCtx)

	fromAddr := common.HexToAddress(*from)
	toAddr := common.HexToAddress(*to)
	code := decodeHexOrExit(*codeHex)
	input := decodeHexOrExit(*inputHex)
	weiValue, ok := new(big.Int).SetString(*value, 10)
	if !ok {
		log.Error("parsing -value", "value", *value)
		os.Exit(1)
	}
	val, overflow := uint256.FromBig(weiValue)
	if overflow {
		log.Error("-value overflows 256 bits", "value", *value)
		os.Exit(1)
	}

	if *create {
		res, err := sim.SimulateCreate(simulator.CreateSimulation{
			From:     fromAddr,
			NewAddr:  toAddr,
			Value:    val,
			GasLimit: *gasLimit,
			InitCode: code,
		})
		if err != nil {
			log.Error("running create", "err", err)
			os.Exit(1)
		}
		logResult(res)
		return
	}

	res, err := sim.Simulate(simulator.Simulation{
		From:     fromAddr,
		To:       toAddr,
		Value:    val,
		GasLimit: *gasLimit,
		Input:    input,
		Code:     code,
	})
	if err != nil {
		log.Error("running call", "err", err)
		os.Exit(1)
	}
	logResult(res)
}

func decodeHexOrExit(s string) []byte {
	if s == "" {
		return nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		log.Error("decoding hex argument", "value", s, "err", err)
		os.Exit(1)
	}
	return b
}

func logResult(res *simulator.Result) {
	log.Info("execution result",
		"success", res.Success,
		"gasUsed", res.GasUsed,
		"gasRefunded", res.GasRefunded,
		"output", hexutil.Encode(res.Output),
	)
	if res.CreatedAddress != nil {
		log.Info("contract created", "address", res.CreatedAddress.Hex())
	}
	if !res.Success {
		log.Info("revert reason", "data", hexutil.Encode(res.RevertReason))
		if res.Err != nil {
			log.Info("failure", "err", res.Err)
		}
	}
	for _, l := range res.Logs {
		log.Info("log", "address", l.Address.Hex(), "topics", len(l.Topics), "data", hexutil.Encode(l.Data))
	}
}
