package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"blikterminal/internal/shared/logger"
	"blikterminal/internal/terminal"
	"blikterminal/internal/terminal/device"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the terminal on this console",
		Long: "Reads keypad presses from stdin, shows the display on the display device\n" +
			"and takes card reads as \"<card id> [payload]\" lines from the card reader path.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTerminal(cmd, v)
		},
	}
	cmd.Flags().String("display", "-", "Display device, - for stdout")
	cmd.Flags().String("card-reader", "/tmp/blikterm-card", "File or FIFO the card reader writes to")
	cmd.Flags().String("log-level", "warn", "Log level")
	_ = v.BindPFlag("display", cmd.Flags().Lookup("display"))
	_ = v.BindPFlag("card_reader", cmd.Flags().Lookup("card-reader"))
	_ = v.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))
	return cmd
}

func runTerminal(cmd *cobra.Command, v *viper.Viper) error {
	log, err := logger.New(v.GetString("log_level"), "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	display, closeDisplay, err := device.OpenSerialDisplay(v.GetString("display"))
	if err != nil {
		return err
	}
	defer closeDisplay.Close()

	// read-write so opening a FIFO does not wait for the writer
	cards, err := os.OpenFile(v.GetString("card_reader"), os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open card reader: %w", err)
	}
	defer cards.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := terminal.NewMachine(display, device.NewBellBuzzer(cmd.ErrOrStderr()), newClient(v), log)
	log.Info("terminal started", zap.String("server", v.GetString("server")))
	keypad := &device.ConsoleKeypad{In: cmd.InOrStdin()}
	err = m.Run(ctx, keypad.Keys(ctx), device.NewLineCardReader(cards))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
