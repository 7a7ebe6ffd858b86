package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blikterminal/internal/client/authclient"
)

// newSettings layers BLIKTERM_* environment variables and an optional
// blikterm.yaml over the command line defaults.
func newSettings() *viper.Viper {
	v := viper.New()
	v.SetConfigName("blikterm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BLIKTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func NewRootCmd(version, buildDate string) *cobra.Command {
	v := newSettings()
	root := &cobra.Command{
		Use:           "blikterm",
		Short:         "BLIK payment terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return err
				}
			}
			return nil
		},
	}
	root.PersistentFlags().String("server", "http://localhost:5000", "Authorization server base URL")
	root.PersistentFlags().Duration("timeout", authclient.DefaultTimeout, "Request timeout")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newRunCmd(v))
	root.AddCommand(newCodeCmd(v))
	return root
}

func newClient(v *viper.Viper) *authclient.Client {
	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = authclient.DefaultTimeout
	}
	return authclient.New(v.GetString("server"), timeout)
}
