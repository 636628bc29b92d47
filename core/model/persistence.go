package model

import (
	"encoding/gob"
	"io"

	"github.com/cockroachdb/errors"
)

// SaveModelToWriter はモデルをio.Writerに保存する
//
// パラメータ:
//   - model: 保存するモデル
//   - w: 保存先のWriter
//
// 戻り値:
//   - error: 保存に失敗した場合のエラー
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先のモデル（ポインタ）
//   - r: 読み込み元のReader
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// SavePredictor は具象型を知らなくても復元できるよう、インターフェース値として保存する。
// 具象型はgob.Registerで登録されている必要がある。
func SavePredictor(p Predictor, w io.Writer) error {
	if p == nil {
		return errors.New("cannot save nil predictor")
	}
	return SaveModelToWriter(&p, w)
}

// LoadPredictor はSavePredictorで保存されたモデルを読み込む
func LoadPredictor(r io.Reader) (Predictor, error) {
	var p Predictor
	if err := LoadModelFromReader(&p, r); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("decoded predictor is nil")
	}
	return p, nil
}
