package main

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/ecopia-map/als_raster/internal/config"
	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/las"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/pointstore"
	"github.com/ecopia-map/als_raster/internal/runstore"
	"github.com/ecopia-map/als_raster/pkg"
	"github.com/ecopia-map/als_raster/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/als_raster/tools"
)

var (
	runFlags   *tools.PipelineFlags
	batchFlags *tools.PipelineFlags
)

var runCmd = &cobra.Command{
	Use:   tools.CommandRun,
	Short: "Builds DTM, DSM and CHM rasters from a LAS file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, runFlags, false)
	},
}

var batchCmd = &cobra.Command{
	Use:   tools.CommandBatch,
	Short: "Builds the rasters of every LAS file in a folder",
	Long: `Processes every .las file found in the input folder, one set of rasters per file.
A file that fails does not stop the others.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, batchFlags, true)
	},
}

var infoCRS string

var infoCmd = &cobra.Command{
	Use:   tools.CommandInfo + " <file.las>",
	Short: "Prints the header, CRS and classification summary of a LAS file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var (
	clipInput       string
	clipOutput      string
	clipCRS         string
	clipBounds      []float64
	clipPointFormat uint8
)

var clipCmd = &cobra.Command{
	Use:   tools.CommandClip,
	Short: "Writes the points of a LAS file falling in a rectangle to a new LAS file",
	Args:  cobra.NoArgs,
	RunE:  runClip,
}

var (
	runsCatalog string
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   tools.CommandRuns,
	Short: "Inspects the run catalog",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the most recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsProductsCmd = &cobra.Command{
	Use:   "products <run-id>",
	Short: "Lists the rasters written by a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsProducts,
}

var versionCmd = &cobra.Command{
	Use:   tools.CommandVersion,
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("als_raster version %s\n", VERSION)
	},
}

func init() {
	runFlags = tools.DefinePipelineFlags(runCmd.Flags())
	batchFlags = tools.DefinePipelineFlags(batchCmd.Flags())

	infoCmd.Flags().StringVarP(&infoCRS, "crs", "e", "", "CRS to assume when the file declares none.")

	clipCmd.Flags().StringVarP(&clipInput, "input", "i", "", "Specifies the input las file.")
	clipCmd.Flags().StringVarP(&clipOutput, "output", "o", "", "Specifies the output las file.")
	clipCmd.Flags().StringVarP(&clipCRS, "crs", "e", "", "CRS of the input points, e.g. EPSG:2056.")
	clipCmd.Flags().Float64SliceVar(&clipBounds, "bounds", nil, "Clip rectangle as xmin,ymin,xmax,ymax.")
	clipCmd.Flags().Uint8Var(&clipPointFormat, "point-format", 0, "Output point format, 0 or 6.")
	_ = clipCmd.MarkFlagRequired("input")
	_ = clipCmd.MarkFlagRequired("output")
	_ = clipCmd.MarkFlagRequired("bounds")

	runsCmd.PersistentFlags().StringVar(&runsCatalog, "catalog", "", "SQLite run catalog.")
	_ = runsCmd.MarkPersistentFlagRequired("catalog")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs, 0 for all.")
	runsCmd.AddCommand(runsListCmd, runsProductsCmd)

	rootCmd.AddCommand(runCmd, batchCmd, infoCmd, clipCmd, runsCmd, versionCmd)
}

// loadOptions builds the options from the defaults, the config file and the flags, in that order
func loadOptions(flags *tools.PipelineFlags, folder bool) (*pipeline.Options, error) {
	opts, err := config.LoadOptions(*flags.Config)
	if err != nil {
		return nil, err
	}
	if err := flags.Apply(opts); err != nil {
		return nil, err
	}
	opts.FolderProcessing = folder
	if opts.Input == "" {
		return nil, errors.New("no input given, use --input")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return opts, nil
}

func runPipeline(cmd *cobra.Command, flags *tools.PipelineFlags, folder bool) error {
	opts, err := loadOptions(flags, folder)
	if err != nil {
		return err
	}
	opts.Command = cmd.Name()

	if *flags.Silent {
		tools.DisableLogger()
	} else {
		printLogo(cmd)
	}
	glog.V(1).Infof("options %+v", *opts)

	algorithmManager, err := std_algorithm_manager.NewAlgorithmManager(opts)
	if err != nil {
		return err
	}

	var catalog *runstore.Store
	if opts.Catalog != "" {
		catalog, err = runstore.Open(opts.Catalog)
		if err != nil {
			return err
		}
		defer func() { _ = catalog.Close() }()
	}

	defer timeTrack(time.Now(), cmd.Name())
	results, err := pkg.NewProcessor(tools.NewStandardFileFinder(), algorithmManager, catalog).Run(cmd.Context(), opts)
	for _, result := range results {
		for _, gaps := range result.Gaps {
			cmd.Printf("%s: %s\n", result.Input, gaps.Error())
		}
	}
	if err != nil {
		return err
	}
	tools.LogOutput("Conversion Completed")
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	lasFile, err := las.ReadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	crs := data.EPSGCode(lasFile.EPSG)
	if !crs.IsDefined() {
		if crs, err = data.ParseCRS(infoCRS); err != nil {
			return err
		}
	}
	cloud := data.NewPointCloud(lasFile.Points, crs, args[0])

	h := lasFile.Header
	cmd.Printf("File:          %s\n", args[0])
	cmd.Printf("LAS version:   %d.%d\n", h.VersionMajor, h.VersionMinor)
	cmd.Printf("Point format:  %d\n", h.PointFormat)
	cmd.Printf("Points:        %d\n", cloud.Len())
	cmd.Printf("CRS:           %s\n", crs)

	xmin, ymin, xmax, ymax, err := pointstore.BoundingBox(cloud)
	if err != nil {
		cmd.Println("Bounds:        empty")
		return nil
	}
	cmd.Printf("Bounds:        %.3f %.3f %.3f %.3f\n", xmin, ymin, xmax, ymax)

	zmin, zmax := math.Inf(1), math.Inf(-1)
	classes := map[uint8]int{}
	for _, p := range cloud.Points() {
		zmin, zmax = math.Min(zmin, p.Z), math.Max(zmax, p.Z)
		classes[p.Classification]++
	}
	cmd.Printf("Elevation:     %.3f %.3f\n", zmin, zmax)

	codes := make([]int, 0, len(classes))
	for c := range classes {
		codes = append(codes, int(c))
	}
	sort.Ints(codes)
	cmd.Println("Classes:")
	for _, c := range codes {
		cmd.Printf("  %3d  %d\n", c, classes[uint8(c)])
	}
	return nil
}

func runClip(cmd *cobra.Command, _ []string) error {
	if len(clipBounds) != 4 {
		return fmt.Errorf("bounds needs 4 values, got %d", len(clipBounds))
	}
	crs, err := data.ParseCRS(clipCRS)
	if err != nil {
		return err
	}
	opts := pipeline.DefaultOptions()
	opts.Command = cmd.Name()
	opts.Input = clipInput
	opts.CRS = crs
	opts.ClipOptions = &pipeline.ClipOptions{
		Bounds:      data.Bounds{XMin: clipBounds[0], YMin: clipBounds[1], XMax: clipBounds[2], YMax: clipBounds[3]},
		Output:      clipOutput,
		PointFormat: clipPointFormat,
	}

	result, err := pkg.ClipFile(cmd.Context(), opts)
	if err != nil {
		return err
	}
	cmd.Printf("%d of %d points written to %s\n", result.Written, result.Total, clipOutput)
	return nil
}

func openCatalog() (*runstore.Store, error) {
	if runsCatalog == "" {
		return nil, errors.New("no catalog given, use --catalog")
	}
	return runstore.Open(runsCatalog)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	runs, err := catalog.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSOURCE\tCRS\tRESOLUTION\tERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%g\t%s\n",
			run.ID, run.StartedAt.Format(time.RFC3339), run.Status, run.Source, run.CRS, run.Resolution, run.Error)
	}
	return w.Flush()
}

func runRunsProducts(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	products, err := catalog.Products(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("no product recorded for run %s", args[0])
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tSIZE\tVALID\tGAPS\tPATH\tPROVENANCE")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%dx%d\t%d\t%d\t%s\t%s\n",
			p.Product, p.Cols, p.Rows, p.ValidCells, p.UnresolvedGaps, p.Path, p.Provenance.Describe())
	}
	return w.Flush()
}
