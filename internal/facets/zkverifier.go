package facets

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/roach88/diamond/internal/ir"
)

const (
	ZkVerifierName      = "ZkVerifierFacet"
	ZkVerifierNamespace = "diamond.facet.zkverifier"

	ReasonInvalidProof = "invalid proof"

	verifiedKey = "verified"
)

// ProofArgs are the arguments of verifyProof(bytes). Both fields are hex,
// with or without 0x.
type ProofArgs struct {
	PublicInputs string `json:"public_inputs"`
	Hash         string `json:"hash"`
}

// ProofResult is the output of verifyProof.
type ProofResult struct {
	Verified bool   `json:"verified"`
	Count    uint64 `json:"count"`
}

// ZkVerifier accepts a proof whose hash commits to its public inputs. It
// stands in for a real verifier with the same call shape.
type ZkVerifier struct {
	*methodSet
}

// NewZkVerifier creates the verifier facet.
func NewZkVerifier() *ZkVerifier {
	z := &ZkVerifier{}
	z.methodSet = newMethodSet(ZkVerifierNamespace,
		method{"verifyProof(bytes)", z.verifyProof},
	)
	return z
}

func (z *ZkVerifier) verifyProof(ctx context.Context, c call) (any, error) {
	var args ProofArgs
	if err := decodeArgs(c, &args); err != nil {
		return nil, err
	}
	inputs, err := decodeHex(args.PublicInputs)
	if err != nil {
		return nil, ir.Revertf(ReasonInvalidProof)
	}
	claimed, err := decodeHex(args.Hash)
	if err != nil || len(claimed) != 32 {
		return nil, ir.Revertf(ReasonInvalidProof)
	}
	if digest := ir.Keccak256(inputs); string(digest[:]) != string(claimed) {
		return nil, ir.Revertf(ReasonInvalidProof)
	}

	var count uint64
	if _, err := loadJSON(ctx, c.space, verifiedKey, &count); err != nil {
		return nil, err
	}
	count++
	if err := storeJSON(ctx, c.space, verifiedKey, count); err != nil {
		return nil, err
	}
	return ProofResult{Verified: true, Count: count}, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
