package cli

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xabinapal/esdsn/internal/cloudid"
)

// CloudIDOutput represents a decoded Cloud ID for JSON.
type CloudIDOutput struct {
	CloudID    string `json:"cloud_id,omitempty"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	KibanaHost string `json:"kibana_host,omitempty"`
	KibanaPort int    `json:"kibana_port,omitempty"`
}

// newCloudIDCmd creates the cloudid command group.
func (cli *CLI) newCloudIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudid",
		Short: "Decode and build Elastic Cloud IDs",
	}

	cmd.AddCommand(
		cli.newCloudIDDecodeCmd(),
		cli.newCloudIDEncodeCmd(),
	)

	return cmd
}

// newCloudIDDecodeCmd creates the cloudid decode command.
func (cli *CLI) newCloudIDDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <cloud-id>",
		Short: "Show the endpoint a Cloud ID points to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := cloudid.Decode(args[0])
			if err != nil {
				return err
			}

			out := CloudIDOutput{
				Host:       ep.Host,
				Port:       ep.Port,
				KibanaHost: ep.KibanaHost,
				KibanaPort: ep.KibanaPort,
			}
			return cli.output().Write(out, func(w io.Writer) {
				fmt.Fprintf(w, "Elasticsearch: https://%s\n", net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port)))
				if ep.KibanaHost != "" {
					fmt.Fprintf(w, "Kibana:        https://%s\n", net.JoinHostPort(ep.KibanaHost, strconv.Itoa(ep.KibanaPort)))
				}
			})
		},
	}
}

// newCloudIDEncodeCmd creates the cloudid encode command.
func (cli *CLI) newCloudIDEncodeCmd() *cobra.Command {
	var (
		port       int
		kibanaHost string
		kibanaPort int
	)

	cmd := &cobra.Command{
		Use:   "encode <label> <host>",
		Short: "Build a Cloud ID for an endpoint",
		Long: `Build a Cloud ID for an endpoint, for instance to point a DSN at a
self-managed cluster behind a TLS proxy.

Example:
  esdsn cloudid encode staging es.staging.example.com --port=9243`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep := cloudid.Endpoint{
				Host:       args[1],
				Port:       port,
				KibanaHost: kibanaHost,
				KibanaPort: kibanaPort,
			}
			id := cloudid.Encode(args[0], ep)

			// Refuse to print an ID that would not decode back.
			if _, err := cloudid.Decode(id); err != nil {
				return err
			}

			out := CloudIDOutput{
				CloudID:    id,
				Host:       ep.Host,
				Port:       ep.Port,
				KibanaHost: ep.KibanaHost,
				KibanaPort: ep.KibanaPort,
			}
			return cli.output().Write(out, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 443, "Elasticsearch port")
	cmd.Flags().StringVar(&kibanaHost, "kibana-host", "", "Kibana host")
	cmd.Flags().IntVar(&kibanaPort, "kibana-port", 443, "Kibana port")

	return cmd
}
