package sandbox

import (
	gopath "path"
	"path/filepath"
	"sort"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

// shellMeta lists characters whose presence makes a command unsafe to
// re-quote after tokenizing; such commands fall back to textual rewriting.
const shellMeta = "|&;<>$`()*?[]{}~#"

// AliasRewriter replaces virtual-path-prefix tokens inside a command line
// with the real paths they stand for, so a command referencing /workspace/...
// touches the mounted directory. The default mode is plain textual
// substitution: both the "prefix/" form and the bare prefix are replaced,
// longest prefix first. Ambiguous or partial matches are the caller's risk.
//
// Token-aware mode splits the command with shell quoting rules and rewrites
// only whole path tokens, which avoids mangling unrelated substrings. It
// only applies to commands without shell operators; anything it cannot
// safely re-quote falls back to the textual pass.
type AliasRewriter struct {
	pairs      []aliasPair
	tokenAware bool
}

type aliasPair struct {
	virtual string
	real    string
}

func NewAliasRewriter(aliases map[string]string, tokenAware bool) *AliasRewriter {
	r := &AliasRewriter{tokenAware: tokenAware}
	for virtual, real := range aliases {
		virtual = strings.TrimSuffix(gopath.Clean(virtual), "/")
		if virtual == "" {
			continue
		}
		if abs, err := filepath.Abs(real); err == nil {
			real = abs
		}
		r.pairs = append(r.pairs, aliasPair{
			virtual: virtual,
			real:    strings.TrimSuffix(real, "/"),
		})
	}
	sort.Slice(r.pairs, func(i, j int) bool {
		if len(r.pairs[i].virtual) != len(r.pairs[j].virtual) {
			return len(r.pairs[i].virtual) > len(r.pairs[j].virtual)
		}
		return r.pairs[i].virtual < r.pairs[j].virtual
	})
	return r
}

func (r *AliasRewriter) Apply(command string) string {
	if r == nil || len(r.pairs) == 0 {
		return command
	}
	if r.tokenAware {
		if rewritten, ok := r.applyTokens(command); ok {
			return rewritten
		}
	}
	for _, p := range r.pairs {
		command = strings.ReplaceAll(command, p.virtual+"/", p.real+"/")
		command = strings.ReplaceAll(command, p.virtual, p.real)
	}
	return command
}

func (r *AliasRewriter) applyTokens(command string) (string, bool) {
	if strings.ContainsAny(command, shellMeta) {
		return "", false
	}
	tokens, err := shellquote.Split(command)
	if err != nil {
		return "", false
	}
	changed := false
	for i, tok := range tokens {
		for _, p := range r.pairs {
			if tok == p.virtual {
				tokens[i] = p.real
				changed = true
				break
			}
			if strings.HasPrefix(tok, p.virtual+"/") {
				tokens[i] = p.real + strings.TrimPrefix(tok, p.virtual)
				changed = true
				break
			}
		}
	}
	if !changed {
		return command, true
	}
	return shellquote.Join(tokens...), true
}
