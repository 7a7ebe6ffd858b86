package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func newCodeCmd(v *viper.Viper) *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Log in and generate a BLIK code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if login == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Login: ")
				l, _ := in.ReadString('\n')
				login = strings.TrimSpace(l)
			}
			password, err := promptPassword(cmd, in, "Password: ")
			if err != nil {
				return err
			}
			client := newClient(v)
			token, err := client.Login(cmd.Context(), login, password)
			if err != nil {
				return err
			}
			code, err := client.GenerateCode(cmd.Context(), token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "BLIK code: %s (valid %ds)\n", code.BlikCode, code.TimeLeft)
			return nil
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "Account login")
	return cmd
}

// promptPassword reads without echo from a tty and falls back to a plain
// line otherwise.
func promptPassword(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(pass), err
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
