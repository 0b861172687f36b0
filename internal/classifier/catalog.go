package classifier

import "github.com/tkingovr/postguard/api"

// DefaultGroups returns the built-in catalog in evaluation order. The
// allowlist is closed over by the suspicious_transaction group.
func DefaultGroups(allow *Allowlist) []Group {
	return []Group{
		{Category: api.CategoryShellCommand, Rules: shellCommandRules()},
		{Category: api.CategorySecretLeak, Rules: secretLeakRules()},
		{Category: api.CategorySuspiciousTransaction, Rules: transactionRules(allow)},
		{Category: api.CategorySocialEngineering, Rules: socialEngineeringRules()},
		{Category: api.CategorySuspiciousURL, Rules: suspiciousURLRules()},
	}
}

func shellCommandRules() []Rule {
	return []Rule{
		Pattern("remote_pipe_to_shell",
			"Content pipes a remote download into an interpreter",
			`\b(?:curl|wget|fetch|iwr|invoke-webrequest)\b[^|\n]*\|\s*(?:sudo\s+)?(?:(?:ba|z|k|da|fi)?sh|python[0-9.]*|perl|ruby|node|php|iex|powershell|pwsh)\b`),
		Pattern("remote_command_substitution",
			"Content wraps a remote download in command substitution",
			"(?:\\$\\(|<\\(|`)\\s*(?:curl|wget)\\b"),
		Pattern("inline_eval",
			"Content contains an inline eval/exec call",
			`\b(?:eval|exec|execsync|os\.system|subprocess\.(?:run|call|popen)|child_process\.exec)\s*\(`),
		Pattern("shell_dash_c",
			"Content invokes a shell or interpreter with inline code",
			`\b(?:(?:ba|z)?sh|python[0-9.]*|perl|node|ruby)\s+-(?:c|e)\s+["']`),
		Pattern("eval_string",
			"Content evaluates a string or variable as a command",
			"\\beval\\s+[\"'$`]"),
		Pattern("privilege_escalation",
			"Content asks for commands to be run with sudo",
			`\bsudo\s+(?:-[a-z]+\s+)*[a-z/.]`),
		Pattern("recursive_delete",
			"Content contains a destructive recursive delete",
			`\brm\s+(?:-[a-z]*r[a-z]*f[a-z]*|-[a-z]*f[a-z]*r[a-z]*|-r\s+-f|-f\s+-r|--recursive\s+--force|--force\s+--recursive)\b`),
		Pattern("disk_destruction",
			"Content contains a disk-wiping or formatting command",
			`\b(?:mkfs(?:\.[a-z0-9]+)?\s|dd\s+if=|shred\s+-|wipefs\s)`),
		Pattern("fork_bomb",
			"Content contains a fork bomb",
			`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
		Pattern("world_writable_root",
			"Content makes system paths world writable",
			`\bchmod\s+(?:-r\s+)?(?:0?777|a\+rwx)\s+/`),
		Pattern("device_redirect",
			"Content redirects output into a device file",
			`>\s*/dev/(?:sd[a-z]|hd[a-z]|nvme|xvd[a-z]|vd[a-z]|mem|kmem|port|tcp/|udp/|disk)`),
		Pattern("reverse_shell",
			"Content contains a reverse shell idiom",
			`\b(?:nc|ncat|netcat)\s+(?:-[a-z]*e[a-z]*\s+\S+|\S+\s+\d+\s+-e)|/dev/tcp/`),
	}
}

func secretLeakRules() []Rule {
	return []Rule{
		Pattern("raw_private_key",
			"Content contains what looks like a raw 32-byte private key",
			`\b(?:0x)?[0-9a-f]{64}\b`),
		Pattern("private_key_flag",
			"Content passes a private key on the command line",
			`--private-key\b`),
		Pattern("pem_private_key",
			"Content contains a PEM private key block",
			`-----begin (?:rsa |ec |dsa |openssh |encrypted |pgp )?private key-----`),
		Pattern("mnemonic_assignment",
			"Content contains a seed phrase assignment",
			`\b(?:mnemonic|seed_?phrase|recovery_?phrase)\s*[=:]\s*["']?[a-z]+(?:\s+[a-z]+){11,23}`),
		Pattern("secret_assignment",
			"Content assigns a value to a key or secret variable",
			`\b(?:[a-z0-9]+_)*(?:private_?key|secret(?:_?key)?|api_?key|access_?key|key|auth_?token|access_?token|token|password|passwd)\s*=\s*["']?[a-z0-9/+_\-.]{8,}`),
		Pattern("openai_key",
			"Content contains an OpenAI-style API key",
			`\bsk-(?:proj-|ant-|live-)?[a-z0-9_\-]{20,}`),
		Pattern("github_token",
			"Content contains a GitHub token",
			`\b(?:gh[pousr]_[a-z0-9]{36,255}|github_pat_[a-z0-9_]{22,255})\b`),
		Pattern("slack_token",
			"Content contains a Slack token",
			`\bxox[baprs]-[0-9a-z\-]{10,}`),
		Pattern("aws_access_key",
			"Content contains an AWS access key ID",
			`\b(?:akia|asia)[0-9a-z]{16}\b`),
		Pattern("google_api_key",
			"Content contains a Google API key",
			`\baiza[0-9a-z_\-]{35}`),
		Pattern("stripe_key",
			"Content contains a Stripe secret key",
			`\b(?:sk|rk)_(?:live|test)_[0-9a-z]{20,}`),
		Pattern("bearer_token",
			"Content contains a bearer token",
			`\bbearer\s+[a-z0-9_\-.=+/]{20,}`),
		Pattern("jwt",
			"Content contains a JSON Web Token",
			`\beyj[a-z0-9_\-]+\.eyj[a-z0-9_\-]+\.[a-z0-9_\-]+`),
	}
}

func transactionRules(allow *Allowlist) []Rule {
	return []Rule{
		{
			Name:   "unknown_contract",
			Reason: "Content instructs a transaction to %s, which is not a known platform contract",
			Match:  unknownContractPredicate(allow),
		},
	}
}

func socialEngineeringRules() []Rule {
	return []Rule{
		Pattern("run_this_command",
			"Content instructs readers to run a command",
			`\b(?:run|execute|exec)\s+(?:this|the\s+following|these|the\s+below|the\s+command\s+below)\s+(?:\w+\s+)?(?:command|script|code|snippet|line|one-liner)s?\b`),
		Pattern("paste_into_terminal",
			"Content instructs readers to paste text into a terminal",
			`\b(?:paste|type|copy)\s+(?:this|it|the\s+following|these|that)?\s*(?:\w+\s+){0,2}?in(?:to)?\s+(?:your|a|the)\s+(?:terminal|shell|console|command\s+line|cli)\b`),
		Pattern("terminal_and_run",
			"Content instructs readers to run something in their terminal",
			`\b(?:open|in)\s+(?:your|a)\s+(?:terminal|shell|console)\s+and\s+(?:run|type|paste|execute|enter)\b`),
		Pattern("compromise_urgency",
			"Content claims a credential or wallet has been compromised",
			`\b(?:your|the)\s+(?:api\s+keys?|private\s+keys?|wallet|account|seed\s+phrase|credentials?|tokens?|keys?)\s+(?:has|have|is|are|was|were)\s+(?:been\s+)?(?:compromised|leaked|exposed|hacked|stolen|suspended|locked|frozen|drained)\b`),
		Pattern("urgent_action",
			"Content pressures readers into urgent action on keys or funds",
			`\b(?:urgent|immediately|act\s+now|right\s+now)\b[^.!?\n]{0,80}\b(?:verify|rotate|migrate|confirm|send|transfer|move)\s+(?:your|the|all)\s+(?:wallet|keys?|funds|tokens|seed|account|credentials|balance)`),
		Pattern("secret_solicitation",
			"Content asks readers to disclose secrets",
			`\b(?:send|share|give|post|reply\s+with|dm|paste|reveal|tell|provide|show)\s+(?:me\s+|us\s+)?(?:your|the)\s+(?:private\s+keys?|seed\s+phrase|mnemonic|recovery\s+phrase|api\s+keys?|secret\s+keys?|passwords?|credentials|access\s+tokens?|\.env)`),
		Pattern("funds_transfer_request",
			"Content asks readers to transfer funds",
			`\b(?:send|transfer|deposit|move|bridge)\s+(?:all\s+)?(?:of\s+)?(?:your\s+)?(?:[0-9][0-9.,]*\s*)?(?:eth|usdc|usdt|dai|weth|funds|tokens|crypto|balance|sol|btc)\b[^.\n]{0,60}\b(?:to|into)\s+(?:this|my|our|the\s+following|0x[0-9a-f]{6,})`),
		Pattern("ignore_instructions",
			"Content attempts to override an agent's instructions",
			`\b(?:ignore|disregard|forget|override|bypass)\s+(?:all\s+)?(?:of\s+)?(?:your\s+|the\s+|any\s+)?(?:previous|prior|above|earlier|preceding|system|original)\s+(?:instructions|prompts?|rules|directives|messages|context|guidelines)`),
		Pattern("persona_override",
			"Content attempts to reassign an agent's identity",
			`\byou\s+are\s+now\s+(?:a|an|the|in|my|dan|no\s+longer)\b`),
		Pattern("authority_impersonation",
			"Content asks an agent to act as a privileged role",
			`\b(?:act|behave|respond|operate)\s+as\s+(?:the|an?|if\s+you\s+were\s+(?:the|an?))\s+(?:admin|administrator|system|root|developer|operator|moderator|platform|owner)\b`),
		Pattern("pretend_privileged",
			"Content asks an agent to pretend to be a privileged role",
			`\bpretend\s+(?:to\s+be|you\s+are)\s+(?:the|an?)\s+(?:admin|administrator|developer|operator|moderator|system)\b`),
		Pattern("fake_system_message",
			"Content contains a forged system or instruction marker",
			`(?:\[\[?\s*system\s*\]\]?|<\|?\s*(?:system|im_start)\s*\|?>|\bnew\s+(?:system\s+)?instructions\s*:|\bsystem\s+override\s*:)`),
		Pattern("prompt_extraction",
			"Content attempts to extract an agent's hidden instructions",
			`\b(?:reveal|print|show|repeat|output|dump)\s+(?:me\s+)?(?:your\s+)?(?:system\s+prompt|hidden\s+instructions|initial\s+instructions)`),
	}
}

func suspiciousURLRules() []Rule {
	return []Rule{
		Pattern("script_file_link",
			"Content links to a raw script or executable file",
			`\b(?:https?|ftp)://[^\s/"'<>]+/[^\s"'<>]*\.(?:sh|bash|zsh|ps1|psm1|bat|cmd|exe|msi|vbs|scr|py|pl|rb|php|jar|apk|dmg|pkg|deb|rpm|run|bin|command|appimage)\b`),
		Pattern("paste_host",
			"Content links to a paste or snippet host",
			`\b(?:pastebin\.com|paste\.ee|hastebin\.com|ghostbin\.[a-z]+|dpaste\.(?:com|org)|ix\.io|0x0\.st|termbin\.com|controlc\.com|rentry\.(?:co|org)|justpaste\.it|paste\.rs|sprunge\.us|privatebin\.net|pastes\.dev|paste\.debian\.net)\b`),
		Pattern("raw_content_script",
			"Content links to a script served from a raw content host",
			`\b(?:raw\.githubusercontent\.com|gist\.githubusercontent\.com|raw\.gitlab\.com|bitbucket\.org/[^\s]+/raw|gitlab\.com/[^\s]+/-/raw|cdn\.jsdelivr\.net/gh)/[^\s"'<>]*(?:\.(?:sh|bash|ps1|py|pl|rb|js|bat|exe)\b|/(?:install|setup|bootstrap|payload|run|init)\b)`),
		Pattern("data_uri",
			"Content contains a data: URI",
			`\bdata:[a-z]+/[a-z0-9.+\-]+(?:;[a-z0-9=.\-]+)*[;,]`),
		Pattern("script_uri",
			"Content contains a javascript: or vbscript: URI",
			`\b(?:javascript|vbscript):[^\s]`),
		Pattern("ip_literal_url",
			"Content links to a bare IP address",
			`\bhttps?://[0-9]{1,3}(?:\.[0-9]{1,3}){3}\b`),
	}
}
