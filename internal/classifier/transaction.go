package classifier

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	castSendRe = regexp.MustCompile(`\bcast\s+send\b`)
	rpcSendRe  = regexp.MustCompile(`(?s)eth_sendtransaction.{0,400}?"to"\s*:\s*"(0x[0-9a-f]{40})"`)
)

// castValueFlags are cast send options that consume the following token.
var castValueFlags = map[string]bool{
	"-r": true, "--rpc-url": true,
	"-f": true, "--from": true,
	"-e": true, "--etherscan-api-key": true,
	"--private-key": true, "--keystore": true, "--account": true,
	"--password": true, "--password-file": true,
	"--mnemonic": true, "--mnemonic-index": true, "--mnemonic-passphrase": true, "--hd-path": true,
	"--value": true, "--nonce": true, "--chain": true, "--chain-id": true,
	"--gas-limit": true, "--gas-price": true, "--priority-gas-price": true, "--blob-gas-price": true,
	"--timeout": true, "--confirmations": true, "--auth": true,
}

// commandTerminators end the argument list of a shell command.
const commandTerminators = "\n;|&`"

// castWindow bounds how far past "cast send" a target is looked for, and
// maxCastTokens bounds how many arguments are read inside that window.
// Together they keep the rule linear in the length of the content.
const (
	castWindow    = 512
	maxCastTokens = 24
)

// tokenPunct is stripped from both ends of a cast argument.
const tokenPunct = "\"'`.,;:()[]{}<>"

// unknownContractPredicate matches transaction-sending commands whose target
// is not in the allowlist. Targets that cannot be checked (ENS names, shell
// variables) are treated as unknown.
func unknownContractPredicate(allow *Allowlist) Predicate {
	return func(normalized, _ string) (string, bool) {
		text := joinContinuations(normalized)
		for _, loc := range castSendRe.FindAllStringIndex(text, -1) {
			rest := text[loc[1]:]
			if len(rest) > castWindow {
				rest = rest[:castWindow]
			}
			if i := strings.IndexAny(rest, commandTerminators); i >= 0 {
				rest = rest[:i]
			}
			target, ok := castTarget(rest)
			if !ok {
				continue
			}
			if common.IsHexAddress(target) {
				if !allow.Contains(target) {
					return target, true
				}
				continue
			}
			return target, true
		}
		for _, m := range rpcSendRe.FindAllStringSubmatch(text, -1) {
			if !allow.Contains(m[1]) {
				return m[1], true
			}
		}
		return "", false
	}
}

// joinContinuations folds backslash-newline line continuations into spaces
// so a command split over several lines reads as one.
func joinContinuations(s string) string {
	if !strings.Contains(s, "\\\n") && !strings.Contains(s, "\\\r\n") {
		return s
	}
	return continuationReplacer.Replace(s)
}

var continuationReplacer = strings.NewReplacer("\\\r\n", " ", "\\\n", " ")

// castTarget returns the first positional argument of a cast send
// invocation when it names a destination: a hex address with or without the
// 0x prefix, an ENS name or a shell variable. Anything else is prose that
// happens to follow the words "cast send".
func castTarget(args string) (string, bool) {
	skipNext := false
	for n := 0; n < maxCastTokens; n++ {
		var field string
		field, args = nextField(args)
		if field == "" {
			return "", false
		}
		if skipNext {
			skipNext = false
			continue
		}
		tok := strings.Trim(field, tokenPunct)
		if tok == "" {
			continue
		}
		if tok == "--create" {
			return "", false
		}
		if strings.HasPrefix(tok, "-") {
			if !strings.Contains(tok, "=") && castValueFlags[tok] {
				skipNext = true
			}
			continue
		}
		switch {
		case common.IsHexAddress(tok):
			if !strings.HasPrefix(tok, "0x") {
				tok = "0x" + tok
			}
			return tok, true
		case strings.HasPrefix(tok, "$"):
			return tok, true
		case strings.HasSuffix(tok, ".eth") && len(tok) > len(".eth"):
			return tok, true
		default:
			return "", false
		}
	}
	return "", false
}

// nextField returns the next whitespace-separated field of s and the
// remainder after it.
func nextField(s string) (field, rest string) {
	start := 0
	for start < len(s) && isSpace(s[start]) {
		start++
	}
	end := start
	for end < len(s) && !isSpace(s[end]) {
		end++
	}
	return s[start:end], s[end:]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
