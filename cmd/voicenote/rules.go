package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"voicenote/internal/classify"
	"voicenote/internal/config"
)

func newRulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Manage the local classification override rules",
	}

	rules.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			rs := classify.LoadRules(cfg.RulesFile())
			if len(rs) == 0 {
				fmt.Println("no rules configured")
				return nil
			}
			for i, r := range rs {
				fmt.Printf("%2d. /%s/\n", i+1, r.Test)
				if r.ProjectName != "" {
					fmt.Printf("    project: %s\n", r.ProjectName)
				}
				if r.SectionName != "" {
					fmt.Printf("    section: %s\n", r.SectionName)
				}
				if len(r.Labels) > 0 {
					fmt.Printf("    labels:  %s\n", strings.Join(r.Labels, ", "))
				}
				if r.Priority != 0 {
					fmt.Printf("    priority: %d\n", r.Priority)
				}
				if r.DueString != "" {
					fmt.Printf("    due: %s\n", r.DueString)
				}
			}
			return nil
		},
	})

	rules.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Interactively append a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			r, err := promptRule()
			if err != nil {
				return err
			}
			if err := classify.AppendRule(cfg.RulesFile(), r); err != nil {
				return err
			}
			fmt.Printf("added rule /%s/ to %s\n", r.Test, cfg.RulesFile())
			return nil
		},
	})

	return rules
}

// promptRule collects one rule from the terminal. Only the pattern is
// required; empty answers leave the field unset.
func promptRule() (classify.Rule, error) {
	rl, err := readline.New("pattern (regex, (?i) for case-insensitive): ")
	if err != nil {
		return classify.Rule{}, err
	}
	defer rl.Close()

	var r classify.Rule
	for {
		line, err := rl.Readline()
		if err != nil {
			return classify.Rule{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := regexp.Compile(line); err != nil {
			fmt.Printf("invalid pattern: %v\n", err)
			continue
		}
		r.Test = line
		break
	}

	ask := func(prompt string) (string, error) {
		rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	if r.ProjectName, err = ask("project (optional): "); err != nil {
		return classify.Rule{}, err
	}
	if r.SectionName, err = ask("section (optional): "); err != nil {
		return classify.Rule{}, err
	}
	labels, err := ask("labels, comma-separated (optional): ")
	if err != nil {
		return classify.Rule{}, err
	}
	for _, l := range strings.Split(labels, ",") {
		if l = strings.TrimSpace(l); l != "" {
			r.Labels = append(r.Labels, l)
		}
	}
	prio, err := ask("priority 1-4 (optional): ")
	if err != nil {
		return classify.Rule{}, err
	}
	if prio != "" {
		n, err := strconv.Atoi(prio)
		if err != nil || n < 1 || n > 4 {
			return classify.Rule{}, fmt.Errorf("priority must be 1-4, got %q", prio)
		}
		r.Priority = n
	}
	if r.DueString, err = ask("due string (optional, e.g. tomorrow): "); err != nil {
		return classify.Rule{}, err
	}
	return r, nil
}
