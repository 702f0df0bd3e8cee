package entity

type Category struct {
	ID    string `json:"id" firestore:"id"`
	Name  string `json:"name" firestore:"name"`
	Slug  string `json:"slug" firestore:"slug"`
	Order int    `json:"order" firestore:"order"`
}

type Location struct {
	ID    string `json:"id" firestore:"id"`
	Name  string `json:"name" firestore:"name"`
	Slug  string `json:"slug" firestore:"slug"`
	Order int    `json:"order" firestore:"order"`
}
