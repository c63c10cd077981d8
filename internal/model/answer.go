package model

// Answer 是一个问题的回答结果，与输入问题按下标一一对应。
type Answer struct {
	Question  string `json:"question"`
	Rewritten string `json:"rewritten,omitempty"`
	Text      string `json:"answer"`
	Failed    bool   `json:"failed"`
	Err       error  `json:"-"`
}

// AnswerFailure 记录一个失败的问题。
type AnswerFailure struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Reason   string `json:"reason"`
}
