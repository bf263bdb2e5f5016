package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

func newEvaluateCmd() *cobra.Command {
	var datasetPath, solutionPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "计算一个分配方案的代价",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return evaluate(cmd.OutOrStdout(), datasetPath, solutionPath)
		},
	}

	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "家庭表 CSV 文件")
	cmd.Flags().StringVarP(&solutionPath, "solution", "s", "", "分配方案 CSV 文件")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("solution")

	return cmd
}

func evaluate(w io.Writer, datasetPath, solutionPath string) error {
	ds, err := utils.LoadFamiliesFile(datasetPath)
	if err != nil {
		return err
	}

	file, err := os.Open(solutionPath)
	if err != nil {
		return err
	}
	defer file.Close()

	assignment, err := utils.ReadSolution(file)
	if err != nil {
		return err
	}
	if err := utils.ValidateAssignment(ds, assignment); err != nil {
		return err
	}

	a, err := antibody.FromAssignment(ds, assignment)
	if err != nil {
		return err
	}
	cost, err := a.Cost(ds)
	if err != nil {
		return err
	}

	minOccupancy, maxOccupancy := a.Occupancy(0), a.Occupancy(0)
	for day := 1; day < antibody.NumDays; day++ {
		minOccupancy = min(minOccupancy, a.Occupancy(day))
		maxOccupancy = max(maxOccupancy, a.Occupancy(day))
	}

	fmt.Fprintf(w, "偏好代价: %d\n", a.PreferenceCost(ds))
	fmt.Fprintf(w, "会计惩罚: %.4f\n", a.AccountingPenalty())
	fmt.Fprintf(w, "总代价: %.4f\n", cost)
	fmt.Fprintf(w, "每天人数: 最少 %d，最多 %d\n", minOccupancy, maxOccupancy)
	return nil
}
