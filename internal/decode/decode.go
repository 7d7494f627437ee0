// Package decode turns raw call-data and event logs into canonical update
// records using a resolved version binding. Both entry points are pure
// functions of (binding, bytes): no I/O, no retained state. Unrecognized
// selectors and topics yield zero records, which is routine traffic, not an
// error; a recognized name with a malformed payload is a decode mismatch,
// reported and isolated so one bad entry never takes down its batch.
package decode

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/binding"
	"locksync/internal/chain"
	"locksync/internal/metrics"
	"locksync/internal/models"
)

// Input decodes transaction call-data into update records
func Input(b *binding.Binding, dctx binding.DecodeContext, data []byte) []models.UpdateRecord {
	if len(data) < 4 {
		return nil
	}

	method := b.MethodByID(data)
	if method == nil {
		return nil
	}

	handler, ok := b.InputDecoders[method.Name]
	if !ok {
		return nil
	}

	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		reportMismatch("input", method.Name, dctx, err)
		return nil
	}

	records := handler(dctx, args)
	if records == nil {
		reportMismatch("input", method.Name, dctx, nil)
		return nil
	}

	count(records)
	return records
}

// Log decodes one receipt log entry into update records
func Log(b *binding.Binding, txHash common.Hash, entry chain.Log) []models.UpdateRecord {
	if len(entry.Topics) == 0 {
		return nil
	}

	event := b.EventByID(entry.Topics[0])
	if event == nil {
		return nil
	}

	handler, ok := b.EventDecoders[event.Name]
	if !ok {
		return nil
	}

	dctx := binding.DecodeContext{
		TxHash:      txHash,
		Contract:    entry.Address,
		BlockNumber: uint64(entry.BlockNumber),
	}

	args := make(map[string]interface{})

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, entry.Topics[1:]); err != nil {
		reportMismatch("log", event.Name, dctx, err)
		return nil
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(args, entry.Data); err != nil {
		reportMismatch("log", event.Name, dctx, err)
		return nil
	}

	records := handler(dctx, args)
	if records == nil {
		reportMismatch("log", event.Name, dctx, nil)
		return nil
	}

	count(records)
	return records
}

// Logs decodes a whole receipt, isolating each entry
func Logs(b *binding.Binding, txHash common.Hash, entries []chain.Log) []models.UpdateRecord {
	var records []models.UpdateRecord
	for _, entry := range entries {
		records = append(records, Log(b, txHash, entry)...)
	}
	return records
}

func reportMismatch(source, name string, dctx binding.DecodeContext, err error) {
	metrics.DecodeMismatches.Inc()
	slog.Warn("Decode mismatch, dropping payload",
		"source", source,
		"name", name,
		"tx_hash", dctx.TxHash.Hex(),
		"contract", dctx.Contract.Hex(),
		"error", err,
	)
}

func count(records []models.UpdateRecord) {
	for _, rec := range records {
		metrics.RecordsDecoded.WithLabelValues(string(rec.Kind)).Inc()
	}
}
