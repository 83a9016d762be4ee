package cli

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/operator/pkg/store"
)

// newEvalViewerCmd serves campaigns/trials/analysis read-only over HTTP,
// for browsing results without the CLI. Grounded on the teacher's
// gin-based API surface (pkg/api in the original tarsy tree), narrowed to
// GET-only routes since the viewer never mutates state (spec.md §6.5).
func newEvalViewerCmd(flags *rootFlags) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "viewer",
		Short: "Start the read-only eval results web viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			gin.SetMode(gin.ReleaseMode)
			r := gin.New()
			r.Use(gin.Recovery())

			registerViewerRoutes(r, st)

			addr := fmt.Sprintf("%s:%d", host, port)
			fmt.Printf("eval viewer listening on http://%s\n", addr)
			return r.Run(addr)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "bind address")
	cmd.Flags().IntVar(&port, "port", 8089, "bind port")
	return cmd
}

func registerViewerRoutes(r *gin.Engine, st *store.Store) {
	r.GET("/campaigns", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		campaigns, err := st.ListCampaigns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, campaigns)
	})

	r.GET("/campaigns/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		campaign, err := st.GetCampaign(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		trials, err := st.ListTrialsForCampaign(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"campaign": campaign, "trials": trials})
	})

	r.GET("/campaigns/:id/analyze", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		summary, err := analyzeCampaign(c.Request.Context(), st, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	r.GET("/trials/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		trial, err := st.GetTrial(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, trial)
	})
}
