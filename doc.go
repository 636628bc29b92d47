// Package tabflow trains classifiers and regressors on tabular data and serves
// single predictions from the stored runs.
//
// A training run ingests a CSV file (plain, compressed or inside an archive),
// separates the target column, splits the rows reproducibly into train and
// holdout sets, fits the configured strategy and scores it on the holdout.
// The fitted model, metric, label mapping and feature schema are stored under
// a fresh run id. The prediction surface loads the newest run (or a pinned
// one), checks every submitted feature vector against the run's schema and
// decodes class codes back to their labels.
//
// # Quick Start
//
//	tabflow train -config pipeline.yaml
//	tabflow serve -config pipeline.yaml -form medical
//	tabflow report -run latest -out report.svg
//
// with a configuration such as
//
//	data_path: data/medical.csv.gz
//	target: disease
//	test_ratio: 0.2
//	seed: 42
//	strategy: random_forest
//	params:
//	  n_estimators: 100
//	store: file
//	artifact_dir: ./artifacts
//
// The same workflow from Go:
//
//	cfg, err := pipeline.LoadConfig("pipeline.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := artifact.Open(cfg.Store, cfg.ArtifactDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	p, err := pipeline.New(cfg, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := p.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.RunID, res.Metric)
//
//	out := predict.NewSurface(store).Submit(ctx, predict.FeatureVector{
//	    Values: []float64{1, 0, 1, 0, 0},
//	})
//	fmt.Println(out.Status, out.Message)
//
// # Packages
//
//   - dataset: CSV ingestion from .csv, .csv.gz, .csv.xz, .csv.zst, .zip, .tar and .tar.gz
//   - preprocessing: target separation, label mapping, seeded train/test split, StandardScaler
//   - trainer: model strategies selected by name (random_forest, decision_tree,
//     linear_regression, logistic_regression)
//   - sklearn/tree, sklearn/ensemble: CART trees and random forests
//   - linear: least squares and logistic regression
//   - metrics, evaluate: holdout scoring (accuracy, R², MSE, RMSE, MAE)
//   - pipeline: configuration and the staged training run
//   - artifact: file and SQLite run stores, with a watched cache
//   - predict, predict/handlers: the prediction surface and its HTTP server
//   - report: holdout charts as SVG (gonum/plot) and HTML (go-echarts)
//   - core/model, core/parallel: shared model interfaces, persistence and parallel loops
//   - pkg/errors, pkg/log: error taxonomy and structured logging
package tabflow
